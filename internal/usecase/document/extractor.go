package document

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

const extractorVersion = "1.0.0"

const (
	plainTextConfidence = 1.0
	htmlConfidence      = 0.9
	wellFormedTable     = 0.95
	malformedTable      = 0.7
	entityContextWidth  = 20

	pdfPageWithText    = 1.0
	pdfPageWithoutText = 0.5
	pdfUnreadable      = 0.3
	docxConfidence     = 0.95
	docxDegraded       = 0.7
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

type entityPattern struct {
	typ        entities.DocumentEntityType
	re         *regexp.Regexp
	confidence float64
	context    bool
}

var entityPatterns = []entityPattern{
	{entities.DocumentEntityMoney, regexp.MustCompile(`[$€£¥]\s*[\d,]+\.?\d*\s*[KMBkmb]?`), 0.95, true},
	{entities.DocumentEntityPercentage, regexp.MustCompile(`\d+\.?\d*\s*%`), 0.98, true},
	{entities.DocumentEntityEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), 1.0, true},
	{entities.DocumentEntityURL, regexp.MustCompile(`https?://[^\s<>"{}|\\^\x60\[\]]+`), 1.0, false},
	{entities.DocumentEntityDate, regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), 0.9, true},
	{entities.DocumentEntityDate, regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`), 0.9, true},
	{entities.DocumentEntityDate, regexp.MustCompile(`(?i)(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{1,2},? \d{4}`), 0.9, true},
}

// Extractor turns raw document bytes into text, entities and tables without
// interpreting them
type Extractor struct{}

// NewExtractor creates an extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SourceHash is the hex sha256 of the document bytes
func SourceHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Extract routes the content by MIME type. mimeType is sniffed when empty.
func (e *Extractor) Extract(content []byte, filename, mimeType string) (*entities.ExtractionResult, error) {
	if mimeType == "" {
		mimeType = http.DetectContentType(content)
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	// sniffing reports a .docx as a plain zip archive
	if mediaType == "application/zip" && strings.EqualFold(filepath.Ext(filename), ".docx") {
		mediaType = mimeDOCX
	}

	var res *entities.ExtractionResult
	switch mediaType {
	case "text/plain", "text/markdown", "text/x-markdown":
		res = e.fromText(content, "text")
	case "text/csv":
		res = e.fromCSV(content)
	case "text/html", "application/xhtml+xml":
		res, err = e.fromHTML(content)
		if err != nil {
			return nil, err
		}
	case mimePDF:
		res = e.fromPDF(content)
	case mimeDOCX:
		res = e.fromDOCX(content)
	default:
		return nil, fmt.Errorf("%w: %s", entities.ErrUnsupportedMimeType, mediaType)
	}

	res.SourceHash = SourceHash(content)
	res.ExtractorVersion = extractorVersion
	res.DetectedMimeType = mediaType
	if res.Metadata == nil {
		res.Metadata = map[string]interface{}{}
	}
	res.Metadata["original_filename"] = filename
	return res, nil
}

// decodeText reads UTF-8 and falls back to Latin-1 for invalid input
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return string(runes)
}

func (e *Extractor) fromText(content []byte, method string) *entities.ExtractionResult {
	text := decodeText(content)
	res := newExtractionResult(text, method)
	if strings.TrimSpace(text) == "" {
		res.ConfidenceScore = 0
		res.CorruptedSections = append(res.CorruptedSections, "Document contains no text")
		return res
	}
	res.Entities = extractEntities(text, "file")
	res.ConfidenceScore = plainTextConfidence
	return res
}

func (e *Extractor) fromCSV(content []byte) *entities.ExtractionResult {
	res := e.fromText(content, "csv")
	if res.ConfidenceScore == 0 {
		return res
	}
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		res.Ambiguities = append(res.Ambiguities, entities.Ambiguity{Location: "file", Issue: "CSV parsing error: " + err.Error()})
		return res
	}
	if len(rows) > 0 {
		res.Tables = append(res.Tables, parseTable(rows, "csv table 1"))
	}
	return res
}

func (e *Extractor) fromHTML(content []byte) (*entities.ExtractionResult, error) {
	doc, err := html.Parse(strings.NewReader(decodeText(content)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		lines  []string
		tables []entities.ExtractedTable
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.Table:
				if rows := tableRows(n); len(rows) > 0 {
					tables = append(tables, parseTable(rows, fmt.Sprintf("html table %d", len(tables)+1)))
				}
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := strings.Join(lines, "\n")
	res := newExtractionResult(text, "html")
	res.Tables = tables
	res.Entities = extractEntities(text, "html body")
	res.ConfidenceScore = htmlConfidence
	if text == "" {
		res.ConfidenceScore = 0
		res.CorruptedSections = append(res.CorruptedSections, "Document contains no text")
	}
	return res, nil
}

// fromPDF reads the text layer page by page. Pages without text count as half
// confidence since they are likely scans; a file that cannot be parsed keeps
// whatever pages were read before the failure.
func (e *Extractor) fromPDF(content []byte) *entities.ExtractionResult {
	pages, err := readPDFPages(content)

	var (
		parts  []string
		found  []entities.ExtractedEntity
		scores []float64
		res    = newExtractionResult("", "pdf")
	)
	for i, text := range pages {
		location := fmt.Sprintf("page %d", i+1)
		if strings.TrimSpace(text) == "" {
			res.Ambiguities = append(res.Ambiguities, entities.Ambiguity{Location: location, Issue: "No text extracted - may be scanned image requiring OCR"})
			scores = append(scores, pdfPageWithoutText)
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", i+1, text))
		found = append(found, extractEntities(text, location)...)
		scores = append(scores, pdfPageWithText)
	}
	if err != nil {
		res.CorruptedSections = append(res.CorruptedSections, "PDF parsing error: "+err.Error())
		scores = append(scores, pdfUnreadable)
	}

	text := strings.Join(parts, "\n")
	res.ExtractedText = text
	res.TextLength = utf8.RuneCountInString(text)
	res.Entities = append(res.Entities, found...)
	res.Metadata["page_count"] = len(pages)
	res.ConfidenceScore = mean(scores, pdfPageWithoutText)
	return res
}

func readPDFPages(content []byte) (pages []string, err error) {
	// the parser panics on some malformed object graphs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return pages, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func mean(xs []float64, empty float64) float64 {
	if len(xs) == 0 {
		return empty
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// fromDOCX reads body paragraphs into the text and top-level tables into
// Tables. Paragraphs inside tables only show up in their cells.
func (e *Extractor) fromDOCX(content []byte) *entities.ExtractionResult {
	body, err := readDOCX(content)
	if err != nil {
		res := newExtractionResult("", "docx")
		res.Ambiguities = append(res.Ambiguities, entities.Ambiguity{Location: "document", Issue: "DOCX parsing error: " + err.Error()})
		res.ConfidenceScore = docxDegraded
		return res
	}

	var (
		lines []string
		found []entities.ExtractedEntity
	)
	for i, para := range body.paragraphs {
		if strings.TrimSpace(para) == "" {
			continue
		}
		lines = append(lines, para)
		found = append(found, extractEntities(para, fmt.Sprintf("paragraph %d", i+1))...)
	}

	text := strings.Join(lines, "\n")
	res := newExtractionResult(text, "docx")
	res.Entities = append(res.Entities, found...)
	for i, rows := range body.tables {
		res.Tables = append(res.Tables, parseTable(rows, fmt.Sprintf("table %d", i+1)))
	}
	res.ConfidenceScore = docxConfidence
	if text == "" && len(res.Tables) == 0 {
		res.ConfidenceScore = 0
		res.CorruptedSections = append(res.CorruptedSections, "Document contains no text")
	}
	return res
}

const (
	docxMainPart = "word/document.xml"
	wordMLSpace  = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

var errNoDocumentPart = errors.New("missing " + docxMainPart)

type docxBody struct {
	paragraphs []string
	tables     [][][]string
}

// readDOCX walks the WordprocessingML main part. Nested tables fold into the
// cell of their outermost table.
func readDOCX(content []byte) (*docxBody, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	f, err := zr.Open(docxMainPart)
	if err != nil {
		return nil, errNoDocumentPart
	}
	defer f.Close()

	var (
		body      docxBody
		para      strings.Builder
		cellParas []string
		row       []string
		rows      [][]string
		depth     int
		inRun     bool
	)
	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", docxMainPart, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Space != wordMLSpace {
				continue
			}
			switch el.Name.Local {
			case "tbl":
				depth++
				if depth == 1 {
					rows = nil
				}
			case "tr":
				if depth == 1 {
					row = nil
				}
			case "tc":
				if depth == 1 {
					cellParas = nil
				}
			case "r":
				inRun = true
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &el); err != nil {
					return nil, fmt.Errorf("parse %s: %w", docxMainPart, err)
				}
				para.WriteString(s)
			case "tab":
				if inRun {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if el.Name.Space != wordMLSpace {
				continue
			}
			switch el.Name.Local {
			case "r":
				inRun = false
			case "p":
				if depth == 0 {
					body.paragraphs = append(body.paragraphs, para.String())
				} else {
					cellParas = append(cellParas, para.String())
				}
				para.Reset()
			case "tc":
				if depth == 1 {
					row = append(row, strings.TrimSpace(strings.Join(cellParas, "\n")))
				}
			case "tr":
				if depth == 1 && len(row) > 0 {
					rows = append(rows, row)
				}
			case "tbl":
				if depth == 1 && len(rows) > 0 {
					body.tables = append(body.tables, rows)
				}
				depth--
			}
		}
	}
	return &body, nil
}

func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, strings.TrimSpace(nodeText(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// parseTable treats the first row as headers. Rows of a different width mark
// the table malformed.
func parseTable(data [][]string, location string) entities.ExtractedTable {
	if len(data) == 0 {
		return entities.ExtractedTable{Location: location, Headers: []string{}, Rows: [][]string{}, Malformed: true}
	}
	t := entities.ExtractedTable{
		Location:   location,
		Headers:    data[0],
		Rows:       data[1:],
		Confidence: wellFormedTable,
	}
	for _, row := range t.Rows {
		if len(row) != len(t.Headers) {
			t.Malformed = true
			t.Confidence = malformedTable
			break
		}
	}
	return t
}

func extractEntities(text, location string) []entities.ExtractedEntity {
	out := []entities.ExtractedEntity{}
	for _, p := range entityPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			ent := entities.ExtractedEntity{
				Type:           p.typ,
				Value:          text[loc[0]:loc[1]],
				SourceLocation: location,
				Confidence:     p.confidence,
			}
			if p.context {
				ent.Context = contextAround(text, loc[0], loc[1])
			}
			out = append(out, ent)
		}
	}
	return out
}

func contextAround(text string, start, end int) string {
	from := start - entityContextWidth
	if from < 0 {
		from = 0
	}
	to := end + entityContextWidth
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return text[from:to]
}

func newExtractionResult(text, method string) *entities.ExtractionResult {
	return &entities.ExtractionResult{
		ExtractedText:     text,
		TextLength:        utf8.RuneCountInString(text),
		Entities:          []entities.ExtractedEntity{},
		Tables:            []entities.ExtractedTable{},
		Metadata:          map[string]interface{}{},
		Ambiguities:       []entities.Ambiguity{},
		CorruptedSections: []string{},
		ExtractionMethod:  method,
	}
}
