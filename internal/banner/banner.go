package banner

import (
	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
)

// PrintBanner prints the tool name and target line to stdout
func PrintBanner(baseURL string) {
	myFigure := figure.NewColorFigure("APITEST", "doom", "cyan", true)
	myFigure.Print()

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	_, _ = cyan.Println("════════════════════════════════════════════════")
	if baseURL != "" {
		_, _ = green.Printf("    target: %s\n", baseURL)
	}
	_, _ = cyan.Println("════════════════════════════════════════════════")
}
