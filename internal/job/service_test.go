package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/sticker-bridge/internal/convert"
	"github.com/maauso/sticker-bridge/internal/media"
)

// recorder collects side effects in the order they happen.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeNotifier struct {
	rec            *recorder
	placeholderErr error
	nextID         int
}

func (f *fakeNotifier) Placeholder(_ context.Context, chatID int64, text string) (int, error) {
	f.rec.add("placeholder %d %s", chatID, text)
	if f.placeholderErr != nil {
		return 0, f.placeholderErr
	}
	f.nextID++
	return 100 + f.nextID, nil
}

func (f *fakeNotifier) Replace(_ context.Context, chatID int64, messageID int, text string) error {
	f.rec.add("replace %d %d %s", chatID, messageID, text)
	return nil
}

func (f *fakeNotifier) Retract(_ context.Context, chatID int64, messageID int) error {
	f.rec.add("retract %d %d", chatID, messageID)
	return nil
}

type fakeFetcher struct {
	rec  *recorder
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, fileRef string) ([]byte, error) {
	f.rec.add("fetch %s", fileRef)
	return f.data, f.err
}

type fakeConverter struct {
	rec *recorder
	art convert.Artifact
	err error
	got convert.SourceMedia
}

func (f *fakeConverter) Convert(_ context.Context, src convert.SourceMedia) (convert.Artifact, error) {
	f.rec.add("convert")
	f.got = src
	return f.art, f.err
}

type fakeDeliverer struct {
	rec    *recorder
	err    error
	status Status
}

func (f *fakeDeliverer) Deliver(_ context.Context, job *Job, art convert.Artifact) (string, error) {
	f.rec.add("deliver %s", art.FileName)
	f.status = job.Status
	if f.err != nil {
		return "", f.err
	}
	return "chat:" + art.FileName, nil
}

type fixture struct {
	rec       *recorder
	repo      *MemoryRepository
	notifier  *fakeNotifier
	fetcher   *fakeFetcher
	converter *fakeConverter
	deliverer *fakeDeliverer
	svc       *Service
}

func newFixture() *fixture {
	rec := &recorder{}
	f := &fixture{
		rec:      rec,
		repo:     NewMemoryRepository(),
		notifier: &fakeNotifier{rec: rec},
		fetcher:  &fakeFetcher{rec: rec, data: []byte("payload")},
		converter: &fakeConverter{rec: rec, art: convert.Artifact{
			Data:     []byte("png"),
			FileName: "Cats AgAD.png",
			Kind:     media.KindRasterStatic,
		}},
		deliverer: &fakeDeliverer{rec: rec},
	}
	f.svc = NewService(f.repo, f.notifier, f.fetcher, f.converter, f.deliverer, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	return f
}

var testRequest = Request{
	ChatID:   7,
	FileRef:  "file-abc",
	UniqueID: "AgAD",
	SetName:  "Cats",
	FileName: "cat.mp4",
	MimeType: "image/webp",
}

func TestNewService(t *testing.T) {
	repo := NewMemoryRepository()

	// With nil logger
	svc := NewService(repo, nil, nil, nil, nil, nil)
	require.NotNil(t, svc)
	assert.Same(t, repo, svc.repo)
	assert.NotNil(t, svc.logger)

	// With custom logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	svc2 := NewService(repo, nil, nil, nil, nil, logger)
	assert.Same(t, logger, svc2.logger)
}

func TestService_Handle_Success(t *testing.T) {
	f := newFixture()

	job, err := f.svc.Handle(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Equal(t, StatusDelivered, job.Status)
	assert.Equal(t, "Cats AgAD.png", job.ArtifactName)
	assert.Equal(t, "chat:Cats AgAD.png", job.ArtifactLocation)
	assert.Equal(t, "raster_static", job.MediaKind)
	assert.Empty(t, job.Error)

	assert.Equal(t, []string{
		"placeholder 7 Downloading file",
		"fetch file-abc",
		"convert",
		"deliver Cats AgAD.png",
		"retract 7 101",
	}, f.rec.list())

	assert.Equal(t, convert.SourceMedia{
		Data:     []byte("payload"),
		JobID:    job.ID,
		UniqueID: "AgAD",
		SetName:  "Cats",
		FileName: "cat.mp4",
		MimeType: "image/webp",
	}, f.converter.got)
	assert.Equal(t, StatusConverting, f.deliverer.status)

	saved, err := f.repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, saved.Status)
	assert.Equal(t, 101, saved.PlaceholderID)
}

func TestService_Handle_FetchFailure(t *testing.T) {
	f := newFixture()
	f.fetcher.err = errors.New("connection reset")

	job, err := f.svc.Handle(context.Background(), testRequest)
	require.Error(t, err)

	var ce *convert.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, convert.KindFetchFailed, ce.Kind)

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "FETCH_FAILED", job.ErrorKind)
	assert.Equal(t, "Failed to fetch the sticker", job.Error)

	assert.Equal(t, []string{
		"placeholder 7 Downloading file",
		"fetch file-abc",
		"replace 7 101 Failed to fetch the sticker",
	}, f.rec.list())
}

func TestService_Handle_ConversionFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    string
		message string
	}{
		{"unsupported", convert.NewError(convert.KindUnsupportedFormat, convert.ErrUnsupportedFormat), "UNSUPPORTED_FORMAT", "Unsupported sticker type"},
		{"decode", convert.NewError(convert.KindDecodeError, media.ErrDecode), "DECODE_ERROR", "Failed to convert the sticker"},
		{"extraction", convert.NewError(convert.KindExtractionError, media.ErrExtraction), "EXTRACTION_ERROR", "Failed to convert the sticker"},
		{"encode", convert.NewError(convert.KindEncodeError, media.ErrEncode), "ENCODE_ERROR", "Failed to convert the sticker"},
		{"untyped", errors.New("disk full"), "UNKNOWN", "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.converter.err = tt.err

			job, err := f.svc.Handle(context.Background(), testRequest)
			require.Error(t, err)

			assert.Equal(t, StatusFailed, job.Status)
			assert.Equal(t, tt.kind, job.ErrorKind)
			assert.Equal(t, tt.message, job.Error)

			calls := f.rec.list()
			assert.Equal(t, []string{
				"placeholder 7 Downloading file",
				"fetch file-abc",
				"convert",
				"replace 7 101 " + tt.message,
			}, calls)
		})
	}
}

func TestService_Handle_DeliveryFailure(t *testing.T) {
	f := newFixture()
	f.deliverer.err = errors.New("chat not found")

	job, err := f.svc.Handle(context.Background(), testRequest)
	require.Error(t, err)

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "UNKNOWN", job.ErrorKind)
	assert.Equal(t, "Unknown error", job.Error)
	assert.Empty(t, job.ArtifactLocation)

	calls := f.rec.list()
	require.Len(t, calls, 5)
	assert.Equal(t, "replace 7 101 Unknown error", calls[4])
}

func TestService_Handle_PlaceholderFailure(t *testing.T) {
	f := newFixture()
	f.notifier.placeholderErr = errors.New("bot blocked")

	job, err := f.svc.Handle(context.Background(), testRequest)
	require.Error(t, err)
	assert.Equal(t, convert.KindUnknown, convert.KindOf(err))

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, []string{"placeholder 7 Downloading file"}, f.rec.list())
}

func TestService_Process_RejectsStartedJob(t *testing.T) {
	f := newFixture()
	job := New(testRequest)
	_ = job.StartDownload(1)

	_, err := f.svc.Process(context.Background(), job)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, f.rec.list())
}

func TestService_Handle_PlaceholderResolvedOnce(t *testing.T) {
	outcomes := map[string]func(*fixture){
		"success":       func(*fixture) {},
		"fetch failure": func(f *fixture) { f.fetcher.err = errors.New("x") },
		"convert fails": func(f *fixture) { f.converter.err = errors.New("x") },
		"deliver fails": func(f *fixture) { f.deliverer.err = errors.New("x") },
	}

	for name, setup := range outcomes {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			setup(f)
			_, _ = f.svc.Handle(context.Background(), testRequest)

			calls := f.rec.list()
			resolved := 0
			for _, c := range calls {
				if len(c) >= 7 && (c[:7] == "replace" || c[:7] == "retract") {
					resolved++
				}
			}
			assert.Equal(t, 1, resolved, "calls: %v", calls)
			assert.Contains(t, calls[len(calls)-1], " 101")
		})
	}
}

func TestService_CreateJob(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	job, err := f.svc.CreateJob(ctx, testRequest)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, job.Status)
	assert.Empty(t, f.rec.list())

	saved, err := f.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, testRequest, saved.Request)
}

func TestService_GetJob_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GetJob(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestService_PruneJobs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	done, err := f.svc.Handle(ctx, testRequest)
	require.NoError(t, err)
	pending, err := f.svc.CreateJob(ctx, testRequest)
	require.NoError(t, err)

	removed, err := f.svc.PruneJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, done.ID, removed[0].ID)

	_, err = f.svc.GetJob(ctx, pending.ID)
	assert.NoError(t, err)
}
