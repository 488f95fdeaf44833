package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#C8A040")
	mutedColor   = lipgloss.Color("#888888")
	textColor    = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000"))

	keyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

func printVersion(version string) {
	fmt.Println(titleStyle.Render("rings-resonator"))
	fmt.Printf("%s %s\n", keyStyle.Render("Version:"), valueStyle.Render(version))
	fmt.Println()
}

// printBanner prints the title and one line per key-value pair.
func printBanner(pairs ...string) {
	fmt.Println(titleStyle.Render("rings-resonator"))
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Printf("%s %s\n", keyStyle.Render(pairs[i]+":"), valueStyle.Render(pairs[i+1]))
	}
	fmt.Println()
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), message)
}
