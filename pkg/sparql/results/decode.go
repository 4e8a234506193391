package results

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/aleksaelezovic/sparqlgraph/pkg/rdf"
)

var ErrUnsupportedFormat = errors.New("unsupported results format")

// Media types of the supported result formats
const (
	ContentTypeJSON = "application/sparql-results+json"
	ContentTypeXML  = "application/sparql-results+xml"
	ContentTypeTSV  = "text/tab-separated-values"
)

// Decode reads a result set in the format named by contentType. Parameters
// such as charset are ignored; plain JSON and XML media types are
// accepted as well.
func Decode(r io.Reader, contentType string) (*Results, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch strings.ToLower(mediaType) {
	case ContentTypeJSON, "application/json", "":
		return DecodeJSON(r)
	case ContentTypeXML, "application/xml", "text/xml":
		return DecodeXML(r)
	case ContentTypeTSV:
		return DecodeTSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}
}

// ContentTypeForFile guesses the result format from a file name.
func ContentTypeForFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".srj":
		return ContentTypeJSON, nil
	case ".xml", ".srx":
		return ContentTypeXML, nil
	case ".tsv":
		return ContentTypeTSV, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// DecodeJSON reads SPARQL JSON results
func DecodeJSON(r io.Reader) (*Results, error) {
	var results Results
	if err := json.NewDecoder(r).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to parse JSON results: %w", err)
	}
	if results.Results == nil && results.Boolean == nil {
		results.Results = &Bindings{}
	}
	return &results, nil
}

type xmlResults struct {
	XMLName xml.Name      `xml:"sparql"`
	Head    xmlHead       `xml:"head"`
	Results *xmlSolutions `xml:"results"`
	Boolean *bool         `xml:"boolean"`
}

type xmlHead struct {
	Variables []xmlVariable `xml:"variable"`
}

type xmlVariable struct {
	Name string `xml:"name,attr"`
}

type xmlSolutions struct {
	Results []xmlResult `xml:"result"`
}

type xmlResult struct {
	Bindings []xmlBinding `xml:"binding"`
}

type xmlBinding struct {
	Name    string      `xml:"name,attr"`
	URI     *string     `xml:"uri"`
	Literal *xmlLiteral `xml:"literal"`
	BNode   *string     `xml:"bnode"`
}

type xmlLiteral struct {
	Value    string `xml:",chardata"`
	Lang     string `xml:"lang,attr,omitempty"`
	Datatype string `xml:"datatype,attr,omitempty"`
}

// DecodeXML reads SPARQL XML results
func DecodeXML(r io.Reader) (*Results, error) {
	var doc xmlResults
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse XML results: %w", err)
	}

	results := &Results{Head: Head{Vars: []string{}}, Boolean: doc.Boolean}
	for _, v := range doc.Head.Variables {
		results.Head.Vars = append(results.Head.Vars, v.Name)
	}
	if doc.Boolean != nil {
		return results, nil
	}

	results.Results = &Bindings{Bindings: []Row{}}
	if doc.Results == nil {
		return results, nil
	}
	for i, result := range doc.Results.Results {
		row := make(Row, len(result.Bindings))
		for _, b := range result.Bindings {
			var term rdf.Term
			switch {
			case b.URI != nil:
				term = rdf.NewNamedNode(strings.TrimSpace(*b.URI))
			case b.BNode != nil:
				term = rdf.NewBlankNode(strings.TrimSpace(*b.BNode))
			case b.Literal != nil:
				if b.Literal.Lang != "" {
					term = rdf.NewLiteralWithLanguage(b.Literal.Value, b.Literal.Lang)
				} else if b.Literal.Datatype != "" {
					term = rdf.NewLiteralWithDatatype(b.Literal.Value, rdf.NewNamedNode(b.Literal.Datatype))
				} else {
					term = rdf.NewLiteral(b.Literal.Value)
				}
			default:
				return nil, fmt.Errorf("result %d: binding %s has no value", i, b.Name)
			}
			row[b.Name] = BindingFromTerm(term)
		}
		results.Results.Bindings = append(results.Results.Bindings, row)
	}
	return results, nil
}

// DecodeTSV reads SPARQL TSV results. The header names the variables with
// their '?'; empty cells are unbound.
func DecodeTSV(r io.Reader) (*Results, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read TSV results: %w", err)
		}
		return nil, fmt.Errorf("failed to parse TSV results: missing header")
	}

	header := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
	results := &Results{
		Head:    Head{Vars: make([]string, len(header))},
		Results: &Bindings{Bindings: []Row{}},
	}
	for i, name := range header {
		results.Head.Vars[i] = strings.TrimLeft(strings.TrimSpace(name), "?$")
	}

	line := 1
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}

		cells := strings.Split(text, "\t")
		if len(cells) > len(header) {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, len(header), len(cells))
		}
		row := make(Row, len(cells))
		for i, cell := range cells {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			term, err := rdf.ParseTerm(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, results.Head.Vars[i], err)
			}
			row[results.Head.Vars[i]] = BindingFromTerm(term)
		}
		results.Results.Bindings = append(results.Results.Bindings, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read TSV results: %w", err)
	}
	return results, nil
}
