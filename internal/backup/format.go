package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/ideograph/internal/store"
)

// FormatVersion is the version written into every backup header.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of decompressed backup data (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Header is the plain-text first line of a backup file. It can be read
// without decompressing the payload.
type Header struct {
	Version    int               `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	Checksum   string            `json:"checksum"`
	Graph      string            `json:"graph"`
	Positions  int               `json:"positions"`
	Edges      int               `json:"edges"`
	Walkers    int               `json:"walkers"`
	Compressed bool              `json:"compressed"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// Write stores doc at path: a JSON header line followed by the gzipped
// JSON document.
func Write(path string, doc store.Document, createdAt time.Time, metadata map[string]string) (*Header, error) {
	payload, err := store.EncodeJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding graph: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := &Header{
		Version:    FormatVersion,
		CreatedAt:  createdAt.UTC(),
		Checksum:   checksum(compressed.Bytes()),
		Graph:      doc.Name,
		Positions:  len(doc.Positions),
		Edges:      len(doc.Edges),
		Walkers:    len(doc.Walkers),
		Compressed: true,
		Metadata:   metadata,
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return nil, fmt.Errorf("writing compressed payload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing file: %w", err)
	}
	return header, nil
}

// open reads the header line and leaves r positioned at the payload.
func open(path string) (*os.File, *bufio.Reader, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening file: %w", err)
	}

	reader := bufio.NewReader(f)
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, nil, nil, fmt.Errorf("unsupported backup version %d", header.Version)
	}
	return f, reader, &header, nil
}

// readPayload reads the compressed payload and checks it against the header.
func readPayload(r io.Reader, header *Header) ([]byte, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if actual := checksum(compressed); actual != header.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return compressed, nil
}

// Read loads a backup, verifies its checksum and decodes the document.
func Read(path string) (store.Document, *Header, error) {
	f, reader, header, err := open(path)
	if err != nil {
		return store.Document{}, nil, err
	}
	defer f.Close()

	compressed, err := readPayload(reader, header)
	if err != nil {
		return store.Document{}, nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return store.Document{}, nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return store.Document{}, nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return store.Document{}, nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	doc, err := store.DecodeJSON(decompressed)
	if err != nil {
		return store.Document{}, nil, fmt.Errorf("parsing backup data: %w", err)
	}
	return doc, header, nil
}

// ReadHeader reads only the header line of a backup.
func ReadHeader(path string) (*Header, error) {
	f, _, header, err := open(path)
	if err != nil {
		return nil, err
	}
	f.Close()
	return header, nil
}

// Verify checks a backup's checksum without decompressing it.
func Verify(path string) (*Header, error) {
	f, reader, header, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := readPayload(reader, header); err != nil {
		return nil, err
	}
	return header, nil
}
