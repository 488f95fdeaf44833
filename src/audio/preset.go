package audio

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const presetExt = ".yaml"

type presetManager struct {
	dir string
}

func newPresetManager(dir string) *presetManager {
	return &presetManager{
		dir: dir,
	}
}

// getList returns the preset names in the directory, sorted.
func (pm *presetManager) getList() ([]string, error) {
	entries, err := os.ReadDir(pm.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), presetExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), presetExt))
	}
	slices.Sort(names)
	return names, nil
}

// path resolves a preset name. Names that look like paths are used as they
// are.
func (pm *presetManager) path(name string) string {
	if strings.HasSuffix(name, presetExt) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(pm.dir, name+presetExt)
}

func (pm *presetManager) load(name string) (Params, error) {
	return LoadPatch(pm.path(name))
}

func (pm *presetManager) save(name string, p Params) error {
	return SavePatch(pm.path(name), p)
}
