package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/ziadkadry99/clinrag/internal/config"
	"github.com/ziadkadry99/clinrag/internal/gcpcreds"
)

// DocumentAIExtractor runs raw documents through a Document AI OCR processor.
type DocumentAIExtractor struct {
	client    *documentai.DocumentProcessorClient
	processor string
}

// NewDocumentAIExtractor connects to the regional endpoint of the configured
// processor.
func NewDocumentAIExtractor(ctx context.Context, cfg config.DocumentAIConfig) (*DocumentAIExtractor, error) {
	name := processorName(cfg.ProjectID, cfg.Location, cfg.ProcessorID)
	if name == "" {
		return nil, &config.ConfigurationError{
			Field:  "retrieval.documentai",
			Reason: "project_id, location and processor_id are required",
		}
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, gcpcreds.ClientOptionsFromEnv()...)
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	return &DocumentAIExtractor{client: client, processor: name}, nil
}

func (e *DocumentAIExtractor) Close() error {
	return e.client.Close()
}

func (e *DocumentAIExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	if len(data) == 0 {
		return &Result{Info: e.processor}, nil
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	resp, err := e.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: e.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil || resp.Document == nil {
		return &Result{Info: e.processor}, nil
	}
	return &Result{
		Text:  resp.Document.Text,
		Pages: len(resp.Document.Pages),
		Info:  e.processor,
	}, nil
}

func processorName(project, location, processorID string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	if project == "" || location == "" || processorID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
}
