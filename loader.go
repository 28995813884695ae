// Package sheetmusic parses MusicXML scores into a positioned sheet model:
// pages, systems, measures, notes and beams, ready for rendering.
//
// Basic Usage:
//
//	parser, err := NewParser()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sheet, err := parser.Parse("song.mxl")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, page := range sheet.Pages {
//		fmt.Printf("page with %d measures\n", len(page.Measures))
//	}
//
// Input may be a compressed .mxl container or a bare .xml file; detection
// is automatic. Documents are validated against the bundled schema before
// any structural parsing happens.
package sheetmusic

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// metaInfPrefix is the reserved directory inside .mxl containers holding
// container metadata rather than score content.
const metaInfPrefix = "META-INF/"

// readMusicXML returns the raw XML payload for path. The path is tried as a
// compressed container first: the first *.xml entry outside META-INF/ wins.
// Anything that does not open as a zip is read back as plain bytes.
func readMusicXML(path string) ([]byte, error) {
	if content, err := readContainerEntry(path); err == nil {
		return content, nil
	} else if _, ok := err.(*FormatError); ok {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	if len(content) == 0 {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("empty file")}
	}
	return content, nil
}

// readContainerEntry extracts the score entry from a zip container. A
// non-zip file returns the zip library's error unwrapped so the caller can
// fall back to raw bytes; a zip with no usable entry is a FormatError.
func readContainerEntry(path string) ([]byte, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if strings.HasPrefix(entry.Name, metaInfPrefix) {
			continue
		}
		if !strings.HasSuffix(entry.Name, ".xml") {
			continue
		}

		reader, err := entry.Open()
		if err != nil {
			return nil, &FormatError{Path: path, Err: fmt.Errorf("open container entry %s: %w", entry.Name, err)}
		}
		defer reader.Close()

		content, err := io.ReadAll(reader)
		if err != nil {
			return nil, &FormatError{Path: path, Err: fmt.Errorf("read container entry %s: %w", entry.Name, err)}
		}
		if len(content) == 0 {
			return nil, &FormatError{Path: path, Err: fmt.Errorf("empty container entry %s", entry.Name)}
		}
		return content, nil
	}

	return nil, &FormatError{Path: path, Err: fmt.Errorf("no xml entry in container")}
}

// parseDocument parses score content into an XML tree. The charset reader
// handles the ISO-8859-1 declarations some notation programs emit.
func parseDocument(path string, content []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	if doc.Root() == nil {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("document has no root element")}
	}
	return doc, nil
}
