package cache

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IndexFile is the archive entry listing "signature|filename" lines.
const IndexFile = "audit_hist_list.txt"

// ArchiveStore persists cache entries in a single zip container on disk.
//
// Each signature maps to a sequentially numbered payload file ("1.json",
// "2.json", ...) recorded in the index entry. Storing an already-known
// signature overwrites its payload file in place rather than appending a
// duplicate. Every Store rewrites the archive to a temp file and renames
// it over the old one, so a killed run leaves the previous archive intact.
type ArchiveStore struct {
	path     string
	validity time.Duration
	index    map[string]string
	next     int
	logger   zerolog.Logger
}

// OpenArchive opens (or lazily creates) the zip archive at path.
// validity bounds the age of entries for non-time-bounded signatures;
// zero means DefaultValidity.
func OpenArchive(path string, validity time.Duration) (*ArchiveStore, error) {
	if validity <= 0 {
		validity = DefaultValidity
	}

	s := &ArchiveStore{
		path:     path,
		validity: validity,
		index:    make(map[string]string),
		next:     1,
		logger:   log.With().Str("component", "cache-archive").Logger(),
	}

	if err := s.loadIndex(); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("path", path).
		Int("entries", len(s.index)).
		Msg("Archive opened")

	return s, nil
}

// loadIndex reads the index entry of an existing archive into memory.
// A missing archive is an empty store, not an error.
func (s *ArchiveStore) loadIndex() error {
	r, err := zip.OpenReader(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open archive %s: %w", s.path, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != IndexFile {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return fmt.Errorf("read archive index: %w", err)
		}
		s.parseIndex(string(data))
		return nil
	}
	return nil
}

// parseIndex fills the in-memory index from "signature|filename" lines
// and positions the next sequential payload number past the highest seen.
func (s *ArchiveStore) parseIndex(raw string) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// The filename never contains '|'; the signature may.
		sep := strings.LastIndex(line, "|")
		if sep < 0 {
			continue
		}
		signature, filename := line[:sep], line[sep+1:]
		s.index[signature] = filename

		if n, err := strconv.Atoi(strings.TrimSuffix(filename, ".json")); err == nil && n >= s.next {
			s.next = n + 1
		}
	}
}

// Lookup returns the payload stored for signature, or ErrMiss when no
// entry exists or a non-bounded entry has outlived the validity window.
func (s *ArchiveStore) Lookup(signature string) ([]byte, error) {
	filename, ok := s.index[signature]
	if !ok {
		cacheMisses.Inc()
		return nil, ErrMiss
	}

	r, err := zip.OpenReader(s.path)
	if err != nil {
		cacheErrors.WithLabelValues("lookup").Inc()
		return nil, fmt.Errorf("open archive %s: %w", s.path, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != filename {
			continue
		}

		if !IsBounded(signature) && time.Since(f.Modified) > s.validity {
			s.logger.Debug().
				Str("signature", signature).
				Time("stored_at", f.Modified).
				Msg("Entry stale")
			cacheMisses.Inc()
			return nil, ErrMiss
		}

		payload, err := readZipFile(f)
		if err != nil {
			cacheErrors.WithLabelValues("lookup").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		cacheHits.WithLabelValues("archive").Inc()
		return payload, nil
	}

	// Index points at a payload the archive no longer holds.
	cacheErrors.WithLabelValues("lookup").Inc()
	return nil, fmt.Errorf("%w: payload %s missing from archive", ErrInvalidEntry, filename)
}

// Store writes payload under signature, assigning the next sequential
// payload filename for a new signature and overwriting in place for a
// known one. The whole archive is rewritten atomically.
func (s *ArchiveStore) Store(signature string, payload []byte) error {
	filename, known := s.index[signature]
	if !known {
		filename = fmt.Sprintf("%d.json", s.next)
	}

	if err := s.rewrite(filename, payload, signature, known); err != nil {
		cacheErrors.WithLabelValues("store").Inc()
		return err
	}

	if !known {
		s.index[signature] = filename
		s.next++
	}

	s.logger.Debug().
		Str("signature", signature).
		Str("file", filename).
		Bool("refresh", known).
		Msg("Entry stored")

	return nil
}

// rewrite produces a new archive containing every existing entry except
// target, plus the updated target payload and index, then swaps it in.
func (s *ArchiveStore) rewrite(target string, payload []byte, signature string, known bool) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".audit_hist-*.zip")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := zip.NewWriter(tmp)

	if old, err := zip.OpenReader(s.path); err == nil {
		for _, f := range old.File {
			if f.Name == target || f.Name == IndexFile {
				continue
			}
			if err := w.Copy(f); err != nil {
				old.Close()
				tmp.Close()
				return fmt.Errorf("copy archive entry %s: %w", f.Name, err)
			}
		}
		old.Close()
	} else if !errors.Is(err, os.ErrNotExist) {
		tmp.Close()
		return fmt.Errorf("open archive %s: %w", s.path, err)
	}

	if err := writeZipEntry(w, target, payload); err != nil {
		tmp.Close()
		return err
	}
	if err := writeZipEntry(w, IndexFile, s.renderIndex(signature, target, known)); err != nil {
		tmp.Close()
		return err
	}

	if err := w.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp archive: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("swap archive: %w", err)
	}
	return nil
}

// renderIndex serializes the index including the entry being stored,
// in stable filename order for reproducible archives.
func (s *ArchiveStore) renderIndex(signature, filename string, known bool) []byte {
	lines := make([]string, 0, len(s.index)+1)
	for sig, fn := range s.index {
		if known && sig == signature {
			continue
		}
		lines = append(lines, sig+"|"+fn)
	}
	lines = append(lines, signature+"|"+filename)

	sort.Slice(lines, func(i, j int) bool {
		return indexOrder(lines[i]) < indexOrder(lines[j])
	})

	return []byte(strings.Join(lines, "\n") + "\n")
}

// indexOrder extracts the numeric payload order of an index line.
func indexOrder(line string) int {
	sep := strings.LastIndex(line, "|")
	if sep < 0 {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimSuffix(line[sep+1:], ".json"))
	return n
}

// Close releases the store. The archive itself is already durable after
// every Store, so there is nothing to flush.
func (s *ArchiveStore) Close() error {
	return nil
}

// Len returns the number of indexed entries.
func (s *ArchiveStore) Len() int {
	return len(s.index)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeZipEntry(w *zip.Writer, name string, data []byte) error {
	fw, err := w.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}
