package local

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Snapshot layout, all little-endian:
//
//	magic    uint32  ("DQVX")
//	version  uint32
//	dim      uint32
//	count    uint32
//	records  count * { idLen uint16, id, docLen uint16, doc, dim * float32 }
const (
	snapshotMagic   = 0x44515658
	snapshotVersion = 1
)

func writeSnapshot(path string, dimension int, records []*record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := []uint32{snapshotMagic, snapshotVersion, uint32(dimension), uint32(len(records))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for _, rec := range records {
		if err := writeString(w, rec.chunkID); err != nil {
			return err
		}
		if err := writeString(w, rec.documentID); err != nil {
			return err
		}
		buf := make([]byte, len(rec.vector)*4)
		for i, x := range rec.vector {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func readSnapshot(path string) ([]*record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic, version, dim, count uint32
	for _, dst := range []*uint32{&magic, &version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, 0, fmt.Errorf("corrupt snapshot header: %w", err)
		}
	}
	if magic != snapshotMagic {
		return nil, 0, fmt.Errorf("bad snapshot magic %#x", magic)
	}
	if version != snapshotVersion {
		return nil, 0, fmt.Errorf("unsupported snapshot version %d", version)
	}

	records := make([]*record, 0, count)
	for i := uint32(0); i < count; i++ {
		chunkID, err := readString(r)
		if err != nil {
			return nil, 0, fmt.Errorf("corrupt record %d: %w", i, err)
		}
		documentID, err := readString(r)
		if err != nil {
			return nil, 0, fmt.Errorf("corrupt record %d: %w", i, err)
		}
		buf := make([]byte, dim*4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, fmt.Errorf("corrupt record %d: %w", i, err)
		}
		vector := make([]float32, dim)
		for j := range vector {
			vector[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		records = append(records, &record{chunkID: chunkID, documentID: documentID, vector: vector})
	}
	return records, int(dim), nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
