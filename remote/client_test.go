package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/aluiziolira/go-ebook-batch/models"
	"github.com/jarcoal/httpmock"
)

func newMockedClient(t *testing.T) *Client {
	t.Helper()
	client := NewClient("http://processor.test/", "bookbatch-test")
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestClientProcess(t *testing.T) {
	client := newMockedClient(t)

	var received Request
	httpmock.RegisterResponder(http.MethodPost, "http://processor.test/process", func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Content-Type") != "application/json" {
			return httpmock.NewStringResponse(http.StatusUnsupportedMediaType, ""), nil
		}
		if req.Header.Get("User-Agent") != "bookbatch-test" {
			return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
		}
		if err := json.NewDecoder(req.Body).Decode(&received); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
		}
		return httpmock.NewJsonResponse(http.StatusOK, models.ProcessingResult{
			Results: []models.BookResult{
				{Title: "Dune", Author: "Herbert", Year: "1965", Status: "Found", DownloadURL: "http://x/dl"},
			},
			ZipPath: "/tmp/books.zip",
			Summary: "done",
		})
	})

	books := []models.BookInput{{Title: "Dune", Author: "Herbert", Year: "1965"}}
	result, err := client.Process(context.Background(), books)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(received.Books) != 1 || received.Books[0] != books[0] {
		t.Fatalf("payload = %+v, want %+v", received.Books, books)
	}
	if len(result.Results) != 1 || result.Results[0].Status != "Found" || result.Results[0].DownloadURL != "http://x/dl" {
		t.Fatalf("result = %+v", result)
	}
	if result.Summary != "done" || result.ZipPath != "/tmp/books.zip" {
		t.Fatalf("result = %+v", result)
	}
	if got := httpmock.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestClientProcessErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		contains string
	}{
		{name: "json error body", status: http.StatusInternalServerError, body: `{"error":"API key is not configured"}`, contains: "500: API key is not configured"},
		{name: "plain body", status: http.StatusBadGateway, body: "bad gateway", contains: "502"},
		{name: "client error", status: http.StatusBadRequest, body: `{"error":"no books provided for processing"}`, contains: "no books provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockedClient(t)
			httpmock.RegisterResponder(http.MethodPost, "http://processor.test/process",
				httpmock.NewStringResponder(tt.status, tt.body))

			_, err := client.Process(context.Background(), []models.BookInput{{Title: "Dune", Author: "Herbert"}})
			if !errors.Is(err, ErrRemoteStatus) {
				t.Fatalf("err = %v, want ErrRemoteStatus", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Fatalf("err = %q, want it to contain %q", err, tt.contains)
			}
			if got := httpmock.GetTotalCallCount(); got != 1 {
				t.Fatalf("calls = %d, want a single attempt", got)
			}
		})
	}
}

func TestClientProcessTransportError(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodPost, "http://processor.test/process",
		httpmock.NewErrorResponder(errors.New("connection reset")))

	_, err := client.Process(context.Background(), []models.BookInput{{Title: "Dune", Author: "Herbert"}})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("err = %v, want transport error", err)
	}
	if errors.Is(err, ErrRemoteStatus) {
		t.Fatalf("transport errors should not be status errors")
	}
}

func TestClientProcessBadJSON(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodPost, "http://processor.test/process",
		httpmock.NewStringResponder(http.StatusOK, "{not json"))

	if _, err := client.Process(context.Background(), []models.BookInput{{Title: "Dune", Author: "Herbert"}}); err == nil {
		t.Fatalf("expected decode error")
	}
}
