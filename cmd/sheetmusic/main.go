package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"sheetmusic"
)

func main() {
	validateOnly := flag.Bool("validate", false, "Validate the score against the bundled schema and exit")
	midiOut := flag.String("midi", "", "Export the parsed score as a Standard MIDI File to the given path")
	bpm := flag.Float64("bpm", 120, "Tempo for MIDI export")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file.xml|file.mxl>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	filename := flag.Arg(0)

	parser, err := sheetmusic.NewParser()
	if err != nil {
		log.Printf("Error building parser: %v\n", err)
		os.Exit(1)
	}

	sheet, err := parser.Parse(filename)
	if err != nil {
		log.Printf("Error parsing score: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Printf("%s: ok\n", filename)
		return
	}

	if *midiOut != "" {
		file, err := os.Create(*midiOut)
		if err != nil {
			log.Printf("Error creating MIDI file: %v\n", err)
			os.Exit(1)
		}
		defer file.Close()

		if err := sheetmusic.WriteMIDITo(file, sheet, *bpm); err != nil {
			log.Printf("Error exporting MIDI: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *midiOut)
		return
	}

	printSheet(sheet, filename)
}

func printSheet(sheet *sheetmusic.Sheet, filename string) {
	fmt.Printf("Score: %s\n", filename)
	if sheet.Title != "" {
		fmt.Printf("Title: %s\n", sheet.Title)
	}
	fmt.Printf("Pages: %d\n", len(sheet.Pages))
	fmt.Println()

	for i, page := range sheet.Pages {
		fmt.Printf("Page %d (%gx%g): %d measures\n",
			i+1, page.Size.Width, page.Size.Height, len(page.Measures))

		for _, measure := range page.Measures {
			marker := " "
			if measure.IsNewSystem {
				marker = "*"
			}
			fmt.Printf("  %s measure %-4s x=%-8.2f y=%-8.2f notes=%-3d beams=%d\n",
				marker, measure.Number, measure.X, measure.Y, len(measure.Notes), len(measure.Beams))
		}
		fmt.Println()
	}
}
