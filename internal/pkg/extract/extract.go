package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// MaxTextLength caps extracted text handed to text generation.
const MaxTextLength = 28000

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoText          = errors.New("no text could be extracted")
)

// Kind is a document format text can be extracted from.
type Kind string

const (
	KindText     Kind = "txt"
	KindMarkdown Kind = "md"
	KindCSV      Kind = "csv"
	KindHTML     Kind = "html"
)

var kindByExtension = map[string]Kind{
	".txt":      KindText,
	".text":     KindText,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
	".csv":      KindCSV,
	".html":     KindHTML,
	".htm":      KindHTML,
}

var kindByMIME = map[string]Kind{
	"text/plain":    KindText,
	"text/markdown": KindMarkdown,
	"text/csv":      KindCSV,
	"text/html":     KindHTML,
}

// DetectKind resolves the format of a document from its file name, falling
// back to sniffing its leading bytes.
func DetectKind(filename string, head []byte) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if kind, ok := kindByExtension[ext]; ok {
		return kind, nil
	}
	if ext != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	return kindOfMIME(mimetype.Detect(head).String())
}

func kindOfMIME(contentType string) (Kind, error) {
	media := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if kind, ok := kindByMIME[media]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, media)
}

// FromReader extracts and cleans the text of a document.
func FromReader(r io.Reader, kind Kind) (string, error) {
	var raw string
	switch kind {
	case KindText, KindMarkdown:
		b, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		raw = string(b)
	case KindCSV:
		text, err := csvText(r)
		if err != nil {
			return "", err
		}
		raw = text
	case KindHTML:
		text, err := HTMLText(r)
		if err != nil {
			return "", err
		}
		raw = text
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
	}

	text := CleanText(raw)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func csvText(r io.Reader) (string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var buf bytes.Buffer
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		buf.WriteString(strings.Join(record, " | "))
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

var (
	whitespace   = regexp.MustCompile(`\s+`)
	unprintables = regexp.MustCompile(`[^\x20-\x7E\x{2018}\x{2019}\x{201C}\x{201D}\x{2013}\x{2014}]`)
)

// CleanText collapses whitespace, drops non-printable characters and
// truncates to MaxTextLength characters.
func CleanText(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, " ")
	}
	text = whitespace.ReplaceAllString(text, " ")
	text = unprintables.ReplaceAllString(text, " ")
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))

	if utf8.RuneCountInString(text) > MaxTextLength {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:MaxTextLength]))
	}
	return text
}
