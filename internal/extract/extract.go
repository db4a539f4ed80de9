// Package extract implements the Extract stage: guessing an artifact's
// archive format from its file name and unpacking it under the recipe's
// source tree, rejecting entries (and tar symlink targets) that would land
// outside the target directory.
package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"

	"github.com/hob-build/hob/internal/fetch"
	"github.com/hob-build/hob/internal/hobpath"
)

// Container is the outer layout an archive stores entries in.
type Container int

const (
	ContainerTar Container = iota
	ContainerZip
)

// Compression is the stream transform applied before the container is read.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionXz
	CompressionBz2
	CompressionZstd
	CompressionLzip
)

type formatEntry struct {
	suffix      string
	container   Container
	compression Compression
}

// formatTable is the ordered suffix-to-format table; the first matching
// suffix wins. Gzip/Xz/Bz/tar/zip are the formats the document format
// mandates; zstd and lzip are additive, beyond what the format guess
// originally covered.
var formatTable = []formatEntry{
	{".tar.gz", ContainerTar, CompressionGzip},
	{".tar.xz", ContainerTar, CompressionXz},
	{".tar.bz", ContainerTar, CompressionBz2},
	{".tar.zst", ContainerTar, CompressionZstd},
	{".tar.lz", ContainerTar, CompressionLzip},
	{".tar", ContainerTar, CompressionNone},
	{".zip", ContainerZip, CompressionNone},
}

// ErrUnknownFormat is returned when no suffix in formatTable matches.
type ErrUnknownFormat struct{ FileName string }

func (e *ErrUnknownFormat) Error() string {
	return fmt.Sprintf("extract: couldn't guess archive type for %q", e.FileName)
}

// guessFormat matches fileName's suffix against formatTable.
func guessFormat(fileName string) (formatEntry, error) {
	lower := strings.ToLower(fileName)
	for _, f := range formatTable {
		if strings.HasSuffix(lower, f.suffix) {
			return f, nil
		}
	}
	return formatEntry{}, &ErrUnknownFormat{FileName: fileName}
}

// Extractor unpacks FetchedArtifacts under Settings' source tree.
type Extractor struct {
	Settings *hobpath.Settings
}

// New builds an Extractor rooted at settings.
func New(settings *hobpath.Settings) *Extractor {
	return &Extractor{Settings: settings}
}

// Extract unpacks fa into {source_path}/{relativePath}, creating the target
// directory recursively first.
func (x *Extractor) Extract(fa *fetch.FetchedArtifact, relativePath string) error {
	target := filepath.Join(x.Settings.SourcePath(), relativePath)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("extract: creating %s: %w", target, err)
	}

	fileName := fa.Artifact.FileName()
	format, err := guessFormat(fileName)
	if err != nil {
		return err
	}

	file, err := os.Open(fa.Path)
	if err != nil {
		return fmt.Errorf("extract: opening %s: %w", fa.Path, err)
	}
	defer file.Close()

	reader, closeDecompressor, err := decompress(file, format.compression)
	if err != nil {
		return fmt.Errorf("extract: %s: %w", fileName, err)
	}
	defer closeDecompressor()

	switch format.container {
	case ContainerTar:
		return extractTar(tar.NewReader(reader), target)
	case ContainerZip:
		return extractZipFrom(fa.Path, target)
	default:
		return fmt.Errorf("extract: unknown container %d", format.container)
	}
}

// decompress wraps r per compression, returning a reader and a closer for
// any underlying resources the decompressor itself owns. Zip bypasses this
// entirely since archive/zip needs random access to the file, not a stream.
func decompress(r io.Reader, c Compression) (io.Reader, func(), error) {
	noop := func() {}
	switch c {
	case CompressionNone:
		return r, noop, nil
	case CompressionGzip:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("gzip: %w", err)
		}
		return gzr, func() { gzr.Close() }, nil
	case CompressionXz:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("xz: %w", err)
		}
		return xzr, noop, nil
	case CompressionBz2:
		return bzip2.NewReader(r), noop, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("zstd: %w", err)
		}
		return zr, zr.Close, nil
	case CompressionLzip:
		lr, err := lzip.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("lzip: %w", err)
		}
		return lr, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown compression %d", c)
	}
}

func extractTar(tr *tar.Reader, destPath string) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}

		relativePath := strings.TrimPrefix(header.Name, "./")
		target := filepath.Join(destPath, relativePath)
		if !isPathWithinDirectory(target, destPath) {
			return fmt.Errorf("archive entry escapes destination directory: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory: %w", err)
			}
			if err := writeEntry(target, tr, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := validateSymlinkTarget(header.Linkname, target, destPath); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory: %w", err)
			}
			if err := atomicSymlink(header.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink: %w", err)
			}
		}
	}
}

// extractZipFrom streams zip entries, joining each onto target,
// canonicalizing, ensuring the parent exists, writing the file and fsyncing.
func extractZipFrom(archivePath, destPath string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		relativePath := strings.TrimPrefix(f.Name, "./")
		target := filepath.Join(destPath, relativePath)
		if !isPathWithinDirectory(target, destPath) {
			return fmt.Errorf("zip entry escapes destination directory: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating parent directory: %w", err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening zip entry: %w", err)
		}
		err = writeEntry(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("syncing %s: %w", target, err)
	}
	return out.Close()
}

func isPathWithinDirectory(targetPath, basePath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}

func validateSymlinkTarget(linkTarget, linkLocation, destPath string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("absolute symlink targets are not allowed: %s -> %s", linkLocation, linkTarget)
	}
	resolved := filepath.Join(filepath.Dir(linkLocation), linkTarget)
	if !isPathWithinDirectory(resolved, destPath) {
		return fmt.Errorf("symlink target escapes destination directory: %s -> %s", linkLocation, linkTarget)
	}
	return nil
}

func atomicSymlink(target, linkPath string) error {
	tmpLink := linkPath + ".tmp"
	os.Remove(tmpLink)
	if err := os.Symlink(target, tmpLink); err != nil {
		return err
	}
	if err := os.Rename(tmpLink, linkPath); err != nil {
		os.Remove(tmpLink)
		return err
	}
	return nil
}
