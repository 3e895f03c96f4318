package upload

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"loan-origination/internal/common/errors"
	commonhttp "loan-origination/internal/common/http"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/metrics"
	"loan-origination/internal/models"
)

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

type receivedUpload struct {
	path          string
	auth          string
	contentLength int64
	fields        map[string][]string
	fileName      string
	fileType      string
	fileContent   []byte
}

func newUploadServer(t *testing.T, status int, body string) (*httptest.Server, *receivedUpload, *int32) {
	t.Helper()
	got := &receivedUpload{}
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		got.contentLength = r.ContentLength

		if !assert.NoError(t, r.ParseMultipartForm(32<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got.fields = r.MultipartForm.Value
		if files := r.MultipartForm.File[models.FormFieldFile]; len(files) == 1 {
			got.fileName = files[0].Filename
			got.fileType = files[0].Header.Get("Content-Type")
			if f, err := files[0].Open(); assert.NoError(t, err) {
				got.fileContent, _ = io.ReadAll(f)
				f.Close()
			}
		}

		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got, &hits
}

func newTestPipeline(t *testing.T, baseURL string) *Pipeline {
	client := commonhttp.NewClient(baseURL, 5*time.Second, staticTokens("tok"))
	return NewPipeline(client, newTestValidator(), Endpoints{
		Selfie: "/files/selfie",
		File:   "/files/upload",
	}, logger.NewTestLogger(t))
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestUpload_SelfieAllFields(t *testing.T) {
	srv, got, _ := newUploadServer(t, http.StatusCreated, `{"id":"file-1","url":"/files/file-1"}`)
	path := writeFile(t, "face.jpg", []byte("jpeg-bytes"))

	target := models.UploadTarget{
		Path: path,
		Kind: models.UploadKindSelfie,
		Selfie: &models.SelfieMetadata{
			ApplicationID:    "app-1",
			SelfieType:       "customer",
			CustomerIDNumber: models.StringPtr("079123456789"),
			CustomerName:     models.StringPtr("Nguyen Van A"),
			Location:         &models.GeoLocation{Latitude: 10.7769, Longitude: 106.7009},
			Notes:            models.StringPtr(""),
		},
	}

	resp, err := newTestPipeline(t, srv.URL).Upload(context.Background(), target, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "file-1", resp.Data["id"])
	assert.Equal(t, "/files/selfie", got.path)
	assert.Equal(t, "Bearer tok", got.auth)

	assert.Equal(t, []string{"app-1"}, got.fields["application_id"])
	assert.Equal(t, []string{"customer"}, got.fields["selfie_type"])
	assert.Equal(t, []string{"079123456789"}, got.fields["customer_id_number"])
	assert.Equal(t, []string{"Nguyen Van A"}, got.fields["customer_name"])
	assert.Equal(t, []string{"10.7769"}, got.fields["latitude"])
	assert.Equal(t, []string{"106.7009"}, got.fields["longitude"])
	assert.Equal(t, []string{""}, got.fields["notes"], "explicitly empty is still sent")

	assert.Equal(t, "face.jpg", got.fileName)
	assert.Equal(t, "image/jpeg", got.fileType)
	assert.Equal(t, []byte("jpeg-bytes"), got.fileContent)
}

func TestUpload_OmitsAbsentOptionalFields(t *testing.T) {
	srv, got, _ := newUploadServer(t, http.StatusOK, `{}`)
	path := writeFile(t, "face.png", []byte("png"))

	target := models.UploadTarget{
		Path: path,
		Kind: models.UploadKindSelfie,
		Selfie: &models.SelfieMetadata{
			ApplicationID: "app-1",
			SelfieType:    "guarantor",
		},
	}

	_, err := newTestPipeline(t, srv.URL).Upload(context.Background(), target, nil)
	require.NoError(t, err)

	for _, field := range []string{"notes", "customer_id_number", "customer_name", "latitude", "longitude"} {
		_, present := got.fields[field]
		assert.False(t, present, "field %s must not be sent", field)
	}
	assert.Len(t, got.fields, 2)
}

func TestUpload_DocumentFields(t *testing.T) {
	srv, got, _ := newUploadServer(t, http.StatusOK, `{"id":"doc-1"}`)
	path := writeFile(t, "contract.pdf", []byte("%PDF-1.7"))

	target := models.UploadTarget{
		Path: path,
		Kind: models.UploadKindDocument,
		Document: &models.DocumentMetadata{
			FolderID:     models.StringPtr("folder-9"),
			DocumentType: models.StringPtr("income_proof"),
		},
	}

	_, err := newTestPipeline(t, srv.URL).Upload(context.Background(), target, nil)
	require.NoError(t, err)

	assert.Equal(t, "/files/upload", got.path)
	assert.Equal(t, []string{"folder-9"}, got.fields["folder_id"])
	assert.Equal(t, []string{"income_proof"}, got.fields["document_type"])
	_, present := got.fields["application_id"]
	assert.False(t, present)
	assert.Equal(t, "application/pdf", got.fileType)
}

func TestUpload_ProgressIsMonotonicAndComplete(t *testing.T) {
	srv, got, _ := newUploadServer(t, http.StatusOK, `{}`)
	content := make([]byte, 256*1024)
	for i := range content {
		content[i] = byte(i)
	}
	path := writeFile(t, "scan.png", content)

	var mu sync.Mutex
	var calls [][2]int64
	onProgress := func(sent, total int64) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, [2]int64{sent, total})
	}

	_, err := newTestPipeline(t, srv.URL).Upload(context.Background(), models.UploadTarget{
		Path: path,
		Kind: models.UploadKindDocument,
	}, onProgress)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, calls)
	for i := 1; i < len(calls); i++ {
		assert.Greater(t, calls[i][0], calls[i-1][0])
	}
	last := calls[len(calls)-1]
	assert.Equal(t, last[1], last[0])
	assert.Equal(t, got.contentLength, last[1])
	assert.Equal(t, content, got.fileContent)
}

func TestUpload_BackendErrorWithDetail(t *testing.T) {
	srv, _, _ := newUploadServer(t, http.StatusInternalServerError, `{"detail":"disk full"}`)
	path := writeFile(t, "face.jpg", []byte("x"))

	_, err := newTestPipeline(t, srv.URL).Upload(context.Background(), models.UploadTarget{
		Path:   path,
		Kind:   models.UploadKindSelfie,
		Selfie: &models.SelfieMetadata{ApplicationID: "app-1", SelfieType: "customer"},
	}, nil)
	require.Error(t, err)

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeBackendError, stdErr.Code)
	assert.Equal(t, "disk full", stdErr.Message)
	status, ok := stdErr.Status()
	assert.True(t, ok)
	assert.Equal(t, 500, status)
}

func TestUpload_BackendErrorUnparsableBody(t *testing.T) {
	srv, _, _ := newUploadServer(t, http.StatusBadGateway, `<html>upstream down</html>`)
	path := writeFile(t, "contract.pdf", []byte("x"))

	_, err := newTestPipeline(t, srv.URL).Upload(context.Background(), models.UploadTarget{
		Path: path,
		Kind: models.UploadKindDocument,
	}, nil)

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeBackendError, stdErr.Code)
	assert.Equal(t, http.StatusBadGateway, stdErr.StatusCode)
	assert.Equal(t, "request failed with status code 502", stdErr.Message)
}

func TestUpload_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	path := writeFile(t, "contract.pdf", []byte("x"))

	before := testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("document", metrics.OutcomeTransport))
	_, err := newTestPipeline(t, url).Upload(context.Background(), models.UploadTarget{
		Path: path,
		Kind: models.UploadKindDocument,
	}, nil)

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeTransportError, stdErr.Code)
	_, ok := stdErr.Status()
	assert.False(t, ok)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("document", metrics.OutcomeTransport)))
}

func TestUpload_PreflightRejectionNeverSends(t *testing.T) {
	srv, _, hits := newUploadServer(t, http.StatusOK, `{}`)
	path := writeFile(t, "contract.pdf", []byte("x"))

	before := testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("selfie", metrics.OutcomeRejected))
	_, err := newTestPipeline(t, srv.URL).Upload(context.Background(), models.UploadTarget{
		Path:   path,
		Kind:   models.UploadKindSelfie,
		Selfie: &models.SelfieMetadata{ApplicationID: "app-1", SelfieType: "customer"},
	}, func(sent, total int64) {
		t.Error("progress must not be reported for a rejected file")
	})

	assert.True(t, stderrors.Is(err, errors.ErrNotAnImage))
	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	_, ok := stdErr.Status()
	assert.False(t, ok)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("selfie", metrics.OutcomeRejected)))
}

func TestUpload_MissingFile(t *testing.T) {
	srv, _, hits := newUploadServer(t, http.StatusOK, `{}`)

	_, err := newTestPipeline(t, srv.URL).Upload(context.Background(), models.UploadTarget{
		Path: filepath.Join(t.TempDir(), "gone.pdf"),
		Kind: models.UploadKindDocument,
	}, nil)

	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestUpload_UnknownKind(t *testing.T) {
	_, err := newTestPipeline(t, "http://example.invalid").Upload(context.Background(), models.UploadTarget{
		Path: "whatever.pdf",
		Kind: "avatar",
	}, nil)

	assert.True(t, stderrors.Is(err, errors.ErrValidationFailed))
}

func TestUpload_RejectsIncompleteSelfieMetadata(t *testing.T) {
	srv, _, hits := newUploadServer(t, http.StatusOK, `{}`)
	path := writeFile(t, "face.jpg", []byte("jpeg-bytes"))

	tests := []struct {
		name     string
		target   models.UploadTarget
		expected []string
	}{
		{
			name:     "no metadata",
			target:   models.UploadTarget{Path: path, Kind: models.UploadKindSelfie},
			expected: []string{"selfie"},
		},
		{
			name: "document metadata on a selfie",
			target: models.UploadTarget{
				Path:     path,
				Kind:     models.UploadKindSelfie,
				Document: &models.DocumentMetadata{ApplicationID: models.StringPtr("app-1")},
			},
			expected: []string{"document", "selfie"},
		},
		{
			name: "blank required fields",
			target: models.UploadTarget{
				Path:   path,
				Kind:   models.UploadKindSelfie,
				Selfie: &models.SelfieMetadata{ApplicationID: " ", SelfieType: ""},
			},
			expected: []string{models.FormFieldApplicationID, models.FormFieldSelfieType},
		},
		{
			name: "selfie metadata on a document",
			target: models.UploadTarget{
				Path:   path,
				Kind:   models.UploadKindDocument,
				Selfie: &models.SelfieMetadata{ApplicationID: "app-1", SelfieType: "customer"},
			},
			expected: []string{"selfie"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestPipeline(t, srv.URL).Upload(context.Background(), tt.target, nil)

			assert.True(t, stderrors.Is(err, errors.ErrValidationFailed))
			var stdErr *errors.StandardError
			require.True(t, stderrors.As(err, &stdErr))
			var fields []string
			for _, v := range stdErr.Violations {
				fields = append(fields, v.Field)
			}
			assert.Equal(t, tt.expected, fields)
		})
	}

	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestUpload_LogsBytesSent(t *testing.T) {
	srv, got, _ := newUploadServer(t, http.StatusCreated, `{"id":"file-1"}`)
	path := writeFile(t, "contract.pdf", []byte("%PDF-1.4 body"))

	core, logs := observer.New(zapcore.DebugLevel)
	client := commonhttp.NewClient(srv.URL, 5*time.Second, staticTokens("tok"))
	pipeline := NewPipeline(client, newTestValidator(), Endpoints{File: "/files/upload"}, logger.NewZapAdapter(zap.New(core)))

	_, err := pipeline.Upload(context.Background(), models.UploadTarget{
		Path: path,
		Kind: models.UploadKindDocument,
	}, nil)
	require.NoError(t, err)

	entries := logs.FilterMessage("Upload completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, got.contentLength, entries[0].ContextMap()["sentBytes"])
}

func TestUpload_NotRetried(t *testing.T) {
	srv, _, hits := newUploadServer(t, http.StatusServiceUnavailable, `{"message":"try later"}`)
	path := writeFile(t, "contract.pdf", []byte("x"))

	_, err := newTestPipeline(t, srv.URL).Upload(context.Background(), models.UploadTarget{
		Path: path,
		Kind: models.UploadKindDocument,
	}, nil)

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestProgressReader_SilentAfterSettle(t *testing.T) {
	var calls int
	pr := newProgressReader(&fixedReader{n: 4}, 8, func(sent, total int64) { calls++ })

	buf := make([]byte, 4)
	_, _ = pr.Read(buf)
	pr.settle()
	_, _ = pr.Read(buf)

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(8), pr.Sent())
}

type fixedReader struct{ n int }

func (f *fixedReader) Read(b []byte) (int, error) {
	return f.n, nil
}
