// Package fetch implements the Fetch stage: pulling each recipe artifact into
// the content-addressed cache, verifying it against the recipe's declared
// digests (and, optionally, a detached PGP signature) as the bytes stream in.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hob-build/hob/internal/hobpath"
	"github.com/hob-build/hob/internal/logx"
	"github.com/hob-build/hob/internal/recipe"
)

// defaultFetchTimeout is used by New; NewWithTimeout overrides it.
const defaultFetchTimeout = 30 * time.Second

// Affected identifies which copy of an artifact a VerificationFailed error is
// about.
type Affected int

const (
	// AffectedCache means a file already sitting in the cache failed
	// re-verification; the stale file is left in place for inspection.
	AffectedCache Affected = iota
	// AffectedFetched means the bytes just streamed from the network
	// failed verification; the partial file has been removed.
	AffectedFetched
)

func (a Affected) String() string {
	if a == AffectedCache {
		return "cache"
	}
	return "fetched"
}

// VerificationFailed reports one or more digest mismatches.
type VerificationFailed struct {
	Path     string
	Affected Affected
	Failures []FailedHash
}

func (e *VerificationFailed) Error() string {
	return fmt.Sprintf("verification failed for %s (%s copy): %v", e.Path, e.Affected, e.Failures)
}

// FetchedArtifact is the result of a successful fetch: the artifact as
// declared plus the local path holding its verified bytes.
type FetchedArtifact struct {
	Artifact recipe.Artifact
	Path     string
}

// Fetcher pulls artifacts into a Settings-rooted cache, verifying every byte
// against the recipe's Verification as it streams.
type Fetcher struct {
	Settings *hobpath.Settings
	Client   *http.Client
	Log      logx.Logger
}

// New builds a Fetcher backed by an SSRF-hardened client, using the default
// fetch timeout.
func New(settings *hobpath.Settings, log logx.Logger) *Fetcher {
	return NewWithTimeout(settings, log, defaultFetchTimeout)
}

// NewWithTimeout builds a Fetcher whose HTTP client's overall request
// timeout is set to timeout instead of the default.
func NewWithTimeout(settings *hobpath.Settings, log logx.Logger, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		Settings: settings,
		Client:   newSecureClient(timeout),
		Log:      log,
	}
}

// Fetch resolves a single artifact: a verified cache hit is returned as-is; a
// cache entry that fails re-verification is reported via VerificationFailed
// without being deleted; otherwise the artifact is downloaded fresh.
func (f *Fetcher) Fetch(ctx context.Context, a recipe.Artifact) (*FetchedArtifact, error) {
	path := f.Settings.CacheFilePath(a)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		if err := verifyFile(path, a.Verification); err != nil {
			var vf *VerificationFailed
			if asVerificationFailed(err, &vf) {
				vf.Path = path
				vf.Affected = AffectedCache
				return nil, vf
			}
			return nil, err
		}
		f.Log.Debug("fetch: cache hit", "path", path)
		return &FetchedArtifact{Artifact: a, Path: path}, nil
	}

	return f.download(ctx, a, path)
}

func (f *Fetcher) download(ctx context.Context, a recipe.Artifact, path string) (*FetchedArtifact, error) {
	url, err := sourceURL(a.Source)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("fetch: creating cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: building request: %w", err)
	}
	req.Header.Set("User-Agent", "hob/1.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: %s: unexpected status %s", url, resp.Status)
	}

	f.Log.Info("fetching artifact", "url", url, "dest", path)

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("fetch: creating %s: %w", path, err)
	}

	var dst io.Writer = out
	var pw *progressWriter
	if shouldShowProgress() {
		pw = newProgressWriter(out, resp.ContentLength, os.Stderr)
		dst = pw
	}

	pool := FromVerification(a.Verification)
	tee := io.TeeReader(resp.Body, hashWriter{pool})
	_, copyErr := io.Copy(dst, tee)
	if pw != nil {
		pw.finish()
	}
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("fetch: writing %s: %w", path, copyErr)
	}
	if closeErr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("fetch: closing %s: %w", path, closeErr)
	}

	if failed := pool.Finish(); len(failed) > 0 {
		os.Remove(path)
		return nil, &VerificationFailed{Path: path, Affected: AffectedFetched, Failures: failed}
	}

	if fh, err := os.Open(path); err == nil {
		fh.Sync()
		fh.Close()
	}

	if a.Verification.PGP != nil {
		if err := verifyPGP(ctx, f.Client, path, *a.Verification.PGP, f.Settings); err != nil {
			os.Remove(path)
			return nil, err
		}
	}

	return &FetchedArtifact{Artifact: a, Path: path}, nil
}

// verifyFile re-hashes an existing file against v without touching the
// network (PGP re-verification is skipped on cache hits: the signature was
// already checked once against these exact bytes when the file was written).
func verifyFile(path string, v recipe.Verification) error {
	pool := FromVerification(v)
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("fetch: reopening cached %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(hashWriter{pool}, file); err != nil {
		return fmt.Errorf("fetch: hashing cached %s: %w", path, err)
	}
	if failed := pool.Finish(); len(failed) > 0 {
		return &VerificationFailed{Failures: failed}
	}
	return nil
}

func sourceURL(s recipe.Source) (string, error) {
	switch src := s.(type) {
	case recipe.FetchSource:
		return src.URL, nil
	default:
		return "", fmt.Errorf("fetch: unsupported source type %T", s)
	}
}

// hashWriter adapts a DigestPool to io.Writer so it can sit in a TeeReader or
// receive io.Copy's output directly.
type hashWriter struct{ pool *DigestPool }

func (h hashWriter) Write(p []byte) (int, error) {
	h.pool.Update(p)
	return len(p), nil
}

func asVerificationFailed(err error, out **VerificationFailed) bool {
	vf, ok := err.(*VerificationFailed)
	if ok {
		*out = vf
	}
	return ok
}
