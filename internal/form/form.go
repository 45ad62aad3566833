// Package form holds the editable state of a post being created or edited and
// runs the submit sequence: upload the selected image, then hand a complete
// record to the page's save callback.
package form

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/race-posts/internal/intake"
	"github.com/debemdeboas/race-posts/internal/model"
)

// Uploader stores image payloads and returns their public URL.
type Uploader interface {
	UploadImage(ctx context.Context, f intake.File) (string, error)
	DiscardImage(ctx context.Context, url string) error
}

// SaveFunc persists a complete candidate record. It is supplied by the page
// (create or update) that owns the form.
type SaveFunc func(ctx context.Context, post *model.Post) error

// Draft is a point-in-time copy of the form fields.
type Draft struct {
	Title string
	Body  string

	// Stored URL when loaded from a post, data URI after a local selection.
	Image string

	HasImageFile bool
	Err          *Error
}

type Form struct {
	mu sync.Mutex

	title string
	body  string
	image string

	imageFile intake.File
	err       *Error

	selection    uint64
	cancelDecode context.CancelFunc

	busy bool

	policy         intake.Policy
	uploader       Uploader
	save           SaveFunc
	cleanupOrphans bool
	logger         zerolog.Logger
}

type Option func(*Form)

func WithPolicy(p intake.Policy) Option {
	return func(f *Form) { f.policy = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(f *Form) { f.logger = l }
}

// WithOrphanCleanup deletes a freshly uploaded image when the record write
// that should reference it fails.
func WithOrphanCleanup(enabled bool) Option {
	return func(f *Form) { f.cleanupOrphans = enabled }
}

func New(uploader Uploader, save SaveFunc, opts ...Option) *Form {
	f := &Form{
		policy:   intake.DefaultPolicy(),
		uploader: uploader,
		save:     save,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Prefill copies title, body and image from p when all three are present.
// An incomplete post leaves the draft as it is.
func (f *Form) Prefill(p *model.Post) bool {
	if !p.Complete() {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = p.Title
	f.body = p.Body
	f.image = p.Image
	return true
}

func (f *Form) SetTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
}

func (f *Form) SetBody(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = body
}

// SelectImage validates file and starts decoding its preview. The returned
// channel yields one result and closes; a nil file closes it without a value.
//
// Size rejection is reported synchronously through the error slot. An
// accepted file replaces the retained payload and clears the error at once,
// while the preview is applied only when decoding finishes and no newer
// selection has been made in the meantime.
func (f *Form) SelectImage(ctx context.Context, file intake.File) <-chan intake.Result {
	out := make(chan intake.Result, 1)
	if file == nil {
		close(out)
		return out
	}

	if err := f.policy.Check(file); err != nil {
		f.mu.Lock()
		f.err = newError(KindImageTooLarge, err)
		f.mu.Unlock()

		f.logger.Debug().Str("file", file.Name()).Int64("size", file.Size()).Msg("Image rejected")
		out <- intake.Result{Err: err}
		close(out)
		return out
	}

	decodeCtx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	if f.cancelDecode != nil {
		f.cancelDecode()
	}
	f.selection++
	gen := f.selection
	f.cancelDecode = cancel
	f.imageFile = file
	f.err = nil
	f.mu.Unlock()

	go func() {
		defer close(out)
		defer cancel()

		preview, err := intake.Decode(decodeCtx, file)

		f.mu.Lock()
		if gen != f.selection {
			f.mu.Unlock()
			out <- intake.Result{Err: ErrSuperseded}
			return
		}
		f.cancelDecode = nil
		switch {
		case err == nil:
			f.image = preview.DataURI
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// Abandoned by the caller; keep the retained file for a later submit.
		default:
			f.imageFile = nil
			f.err = newError(imageErrorKind(err), err)
		}
		f.mu.Unlock()

		if err != nil {
			f.logger.Warn().Err(err).Str("file", file.Name()).Msg("Image preview failed")
		}
		out <- intake.Result{Preview: preview, Err: err}
	}()

	return out
}

// Submit runs the two-phase write. Title and body are checked first so no
// blob is uploaded for a draft that can never be saved; the resolved image URL
// is checked after the upload. Any failure lands in the error slot and the
// draft stays intact for another attempt.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	f.busy = true
	title, body, image, file, gen := f.title, f.body, f.image, f.imageFile, f.selection
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.busy = false
		f.mu.Unlock()
	}()

	// Text fields are checked before the upload so a draft that cannot be
	// saved never leaves a blob behind.
	if title == "" || body == "" {
		return f.fail(newError(KindMissingFields, ErrIncomplete))
	}

	imageURL := image
	uploaded := false
	if file != nil {
		url, err := f.uploader.UploadImage(ctx, file)
		if errors.Is(err, intake.ErrImageUnsupported) {
			f.mu.Lock()
			if f.selection == gen {
				f.imageFile = nil
			}
			f.mu.Unlock()
			return f.fail(newError(KindImageUnsupported, err))
		}
		if err != nil {
			f.logger.Error().Err(err).Str("file", file.Name()).Msg("Image upload failed")
			return f.fail(newError(KindSaveFailed, err))
		}
		imageURL, uploaded = url, true
	} else if strings.HasPrefix(image, "data:") {
		// A preview whose file was dropped is never a stored URL.
		imageURL = ""
	}

	candidate := &model.Post{Title: title, Body: body, Image: imageURL}
	if !candidate.Complete() {
		return f.fail(newError(KindMissingFields, ErrIncomplete))
	}

	if err := f.save(ctx, candidate); err != nil {
		if uploaded {
			f.discard(ctx, imageURL)
		}
		return f.fail(newError(KindSaveFailed, err))
	}

	f.mu.Lock()
	f.image = imageURL
	if f.selection == gen {
		f.imageFile = nil
	}
	f.mu.Unlock()

	return nil
}

func imageErrorKind(err error) ErrorKind {
	if errors.Is(err, intake.ErrImageUnsupported) {
		return KindImageUnsupported
	}
	return KindImageUnreadable
}

func (f *Form) discard(ctx context.Context, url string) {
	if !f.cleanupOrphans {
		f.logger.Warn().Str("image_url", url).Msg("Record write failed, uploaded image left orphaned")
		return
	}
	if err := f.uploader.DiscardImage(ctx, url); err != nil {
		f.logger.Warn().Err(err).Str("image_url", url).Msg("Failed to discard orphaned image")
		return
	}
	f.logger.Info().Str("image_url", url).Msg("Discarded orphaned image")
}

func (f *Form) fail(e *Error) error {
	f.mu.Lock()
	f.err = e
	f.mu.Unlock()
	return e
}

func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Draft{
		Title:        f.title,
		Body:         f.body,
		Image:        f.image,
		HasImageFile: f.imageFile != nil,
		Err:          f.err,
	}
}

// LastError returns the most recent error, or nil.
func (f *Form) LastError() *Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Form) ErrorMessage() string {
	if e := f.LastError(); e != nil {
		return e.Message
	}
	return ""
}
