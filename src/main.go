package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/jinjor/rings-resonator/src/audio"
)

var (
	version = "0.1.0"
)

// writeTimeout bounds how long a stalled controller can hold up a report.
const writeTimeout = time.Second

// CLI ...
type CLI struct {
	Version    bool   `short:"v" help:"Show version information"`
	Patch      string `short:"p" type:"existingfile" help:"YAML patch to start with"`
	Presets    string `default:"presets" type:"path" help:"Directory of YAML presets"`
	Socket     string `default:"/tmp/rings-resonator.sock" help:"Unix socket the controller connects to"`
	Midi       bool   `help:"Play notes from MIDI IN"`
	MidiPort   string `help:"Part of the name of the MIDI IN port to open"`
	SampleRate int    `default:"48000" help:"Device sample rate"`
	BufferSize int    `default:"1024" help:"Device buffer size in frames"`
}

func main() {
	cliArgs := &CLI{}
	kong.Parse(cliArgs,
		kong.Name("rings-resonator"),
		kong.Description("Modal and string resonator player"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
	)
	if cliArgs.Version {
		printVersion(version)
		os.Exit(0)
	}
	log.SetFlags(log.Lshortfile)
	log.Printf("NumCPU: %v\n", runtime.NumCPU())

	patch := audio.NewParams()
	if cliArgs.Patch != "" {
		var err error
		patch, err = audio.LoadPatch(cliArgs.Patch)
		if err != nil {
			printError(err.Error())
			os.Exit(1)
		}
	}

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := audio.NewAudio(audio.Config{
		SampleRate: cliArgs.SampleRate,
		BufferSize: cliArgs.BufferSize,
		PresetDir:  cliArgs.Presets,
		Patch:      patch,
	})
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	defer a.Close()
	printBanner(
		"Model", patch.Model.String(),
		"Engine", patch.Engine.String(),
		"Sample rate", strconv.Itoa(cliArgs.SampleRate),
		"Socket", cliArgs.Socket,
	)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		sig := <-signalCh
		log.Printf("Caught signal %s: shutting down...\n", sig)
		cancel()
	}()
	err = withIPCConnection(ctx, cliArgs.Socket, func(conn net.Conn) error {
		w := &lineWriter{conn: conn}
		removeChanges := a.Changes.Add(func(key string) {
			w.WriteLine("changed " + url.QueryEscape(key))
		})
		defer removeChanges()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return a.Start(ctx)
		})
		g.Go(func() error {
			return receiveCommands(ctx, conn, a.CommandCh)
		})
		g.Go(func() error {
			return sendReports(ctx, w, a)
		})
		if cliArgs.Midi {
			g.Go(func() error {
				err := audio.ListenToMidiIn(ctx, cliArgs.MidiPort, a.AddMidiEvent)
				if errors.Is(err, audio.ErrNoMidiIn) {
					log.Printf("WARN: %v\n", err)
					return nil
				}
				return err
			})
		}
		return g.Wait()
	})
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	log.Println("main() ended.")
}

func withIPCConnection(ctx context.Context, sockFileName string, f func(net.Conn) error) error {
	os.Remove(sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing IPC...")
		err := listener.Close()
		if err != nil {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(sockFileName)
	}()
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()
	log.Printf("start listening on %s...\n", sockFileName)
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, commandCh chan<- []string) error {
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()
	reader := bufio.NewReader(conn)
	var line []byte
	for {
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF || ctx.Err() != nil {
			break
		}
		if err != nil {
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		line = line[:0]
		if err != nil {
			log.Printf("invalid command: %v\n", err)
			continue
		}
		log.Printf("received: %v\n", command)
		commandCh <- command
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Fields(line)
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

// lineWriter serializes lines written to the connection from several
// goroutines.
type lineWriter struct {
	mu   sync.Mutex
	conn net.Conn
}

func (w *lineWriter) WriteLine(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := w.conn.Write([]byte(s + "\n")); err != nil {
		log.Printf("error while writing report: %v", err)
	}
}

func sendReports(ctx context.Context, w *lineWriter, a *audio.Audio) error {
	t := time.NewTicker(time.Second / 30)
	defer t.Stop()
	var sb strings.Builder
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			result := a.GetFFT()
			sb.Reset()
			sb.WriteString("fft")
			for _, value := range result {
				sb.WriteByte(' ')
				sb.WriteString(strconv.FormatFloat(float64(value), 'f', 6, 32))
			}
			w.WriteLine(sb.String())
		}
	}
	log.Println("sendReports() ended.")
	return nil
}
