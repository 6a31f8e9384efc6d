package bayestar

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
)

// Codec serialises requests and parses program output.
type Codec interface {
	EncodeRequest(w io.Writer, req *Request) error
	DecodeResult(r io.Reader) (*Result, error)
}

// JSONCodec writes JSON, optionally gzip-compressed. Decoding accepts both
// plain and gzip-compressed documents.
type JSONCodec struct {
	Gzip bool
}

var gzipMagic = []byte{0x1f, 0x8b}

func (c JSONCodec) EncodeRequest(w io.Writer, req *Request) error {
	if !c.Gzip {
		return json.NewEncoder(w).Encode(req)
	}
	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(gz).Encode(req); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

func (JSONCodec) DecodeResult(r io.Reader) (*Result, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if head, err := br.Peek(2); err == nil && bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		src = gz
	}
	var out output
	if err := json.NewDecoder(src).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode program output: %w", err)
	}
	return out.result()
}
