package retrieval

import (
	"fmt"

	"github.com/ziadkadry99/clinrag/internal/filestore"
)

// Fixed source labels and notices of synthetic results.
const (
	SourceSearchError   = "Error de búsqueda"
	SourceSystemMessage = "System Message"

	NoticeSourceMissing         = "No se encontró ningún archivo DSM-5 en la carpeta especificada."
	NoticeExtractionUnavailable = "DSM-5 retrieval is only available in server-side contexts. Using AI knowledge without DSM-5 context."
	NoticeRetrievalFailed       = "DSM-5 retrieval was not successful. Using AI knowledge without DSM-5 context."
)

// FileDetails identifies the document a result came from.
type FileDetails struct {
	FileName string `json:"fileName"`
	FileID   string `json:"fileId"`
	MimeType string `json:"mimeType"`
}

// Result is one ranked passage.
type Result struct {
	Content        string       `json:"content"`
	Source         string       `json:"source"`
	RelevanceScore float64      `json:"relevanceScore"`
	FileDetails    *FileDetails `json:"fileDetails,omitempty"`
}

// Outcome is what one retrieval produced. It is one of Found, SourceMissing,
// ExtractionUnavailable, Empty or Failed.
type Outcome interface {
	outcome()
}

// Found carries ranked passages from File, best first.
type Found struct {
	Results []Result
	File    filestore.File
}

// SourceMissing means no DSM-5 document was in the folder.
type SourceMissing struct{}

// ExtractionUnavailable means the document exists but this process cannot
// read its format.
type ExtractionUnavailable struct {
	File filestore.File
}

// Empty means no section reached the minimum relevance.
type Empty struct {
	Query string
	File  filestore.File
}

// Failed is never returned by Retrieve. Callers substitute it when Retrieve
// errs so the report continues without DSM-5 context.
type Failed struct {
	Err error
}

func (Found) outcome()                 {}
func (SourceMissing) outcome()         {}
func (ExtractionUnavailable) outcome() {}
func (Empty) outcome()                 {}
func (Failed) outcome()                {}

// Results renders an outcome as a non-empty result list. Synthetic entries
// score 0 and carry a fixed source label.
func Results(o Outcome) []Result {
	switch v := o.(type) {
	case Found:
		if len(v.Results) > 0 {
			return v.Results
		}
		return Results(Empty{File: v.File})
	case SourceMissing:
		return []Result{{Content: NoticeSourceMissing, Source: SourceSearchError}}
	case ExtractionUnavailable:
		return []Result{{Content: NoticeExtractionUnavailable, Source: SourceSystemMessage}}
	case Empty:
		return []Result{{
			Content: fmt.Sprintf("No se encontró contenido relevante para la consulta: %q", v.Query),
			Source:  fmt.Sprintf("DSM-5 (%s)", v.File.Name),
		}}
	case Failed:
		return []Result{{Content: NoticeRetrievalFailed, Source: SourceSystemMessage}}
	default:
		return []Result{{Content: NoticeRetrievalFailed, Source: SourceSystemMessage}}
	}
}

// UsesDSM5 reports whether the outcome carries real DSM-5 passages.
func UsesDSM5(o Outcome) bool {
	f, ok := o.(Found)
	return ok && len(f.Results) > 0
}
