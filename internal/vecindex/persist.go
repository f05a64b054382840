package vecindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/haneul-ai/recall/internal/model"
)

// magic identifies the on-disk graph format, checked on Load.
var magic = [4]byte{'H', 'N', 'S', '1'}

// Save persists the graph, parameters, and the id<->key bijection to path
// via write-then-rename, so a crash mid-write never leaves a truncated
// file at the live path.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	writeErr := func() error {
		if _, err := w.Write(magic[:]); err != nil {
			return err
		}
		if err := writeU32(w, uint32(ix.dim)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(ix.params.M)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(ix.params.EfConstruction)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(ix.params.EfSearch)); err != nil {
			return err
		}
		if err := writeU64(w, ix.nextKey); err != nil {
			return err
		}
		if err := writeU64(w, ix.entryPoint); err != nil {
			return err
		}
		hasEntry := byte(0)
		if ix.hasEntry {
			hasEntry = 1
		}
		if err := w.WriteByte(hasEntry); err != nil {
			return err
		}
		if err := writeU32(w, uint32(ix.maxLevel)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(ix.nodes))); err != nil {
			return err
		}
		for key, nd := range ix.nodes {
			if err := writeU64(w, key); err != nil {
				return err
			}
			removed := byte(0)
			if nd.removed {
				removed = 1
			}
			if err := w.WriteByte(removed); err != nil {
				return err
			}
			for _, x := range nd.vector {
				if err := writeF32(w, x); err != nil {
					return err
				}
			}
			if err := writeU32(w, uint32(len(nd.layers))); err != nil {
				return err
			}
			for _, neighbors := range nd.layers {
				if err := writeU32(w, uint32(len(neighbors))); err != nil {
					return err
				}
				for _, nk := range neighbors {
					if err := writeU64(w, nk); err != nil {
						return err
					}
				}
			}
		}
		if err := writeU32(w, uint32(len(ix.idToKey))); err != nil {
			return err
		}
		for id, key := range ix.idToKey {
			if err := writeU16(w, uint16(len(id))); err != nil {
				return err
			}
			if _, err := w.WriteString(id); err != nil {
				return err
			}
			if err := writeU64(w, key); err != nil {
				return err
			}
		}
		return w.Flush()
	}()

	if writeErr != nil {
		f.Close()
		os.Remove(tmp)
		return writeErr
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load restores a previously saved graph. A malformed header or truncated
// body surfaces as model.KindIndexCorrupt so the caller can trigger a full
// rebuild from the record store, per spec.md §7. Load restores the stored
// dimension as is; comparing it with the expected one is left to the caller.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}
	if hdr != magic {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, fmt.Errorf("bad magic"))
	}

	dim, err := readU32(r)
	if err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}
	m, err := readU32(r)
	if err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}
	efc, err := readU32(r)
	if err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}
	efs, err := readU32(r)
	if err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}

	ix := New(int(dim), Params{M: int(m), EfConstruction: int(efc), EfSearch: int(efs)})

	nextKey, err := readU64(r)
	if err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}
	entryPoint, err := readU64(r)
	if err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}
	hasEntryByte, err := r.ReadByte()
	if err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}
	maxLevel, err := readU32(r)
	if err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}
	nodeCount, err := readU32(r)
	if err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}

	ix.nextKey = nextKey
	ix.entryPoint = entryPoint
	ix.hasEntry = hasEntryByte == 1
	ix.maxLevel = int(maxLevel)

	for i := uint32(0); i < nodeCount; i++ {
		key, err := readU64(r)
		if err != nil {
			return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
		}
		removedByte, err := r.ReadByte()
		if err != nil {
			return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
		}
		vector := make([]float32, dim)
		for j := range vector {
			v, err := readF32(r)
			if err != nil {
				return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
			}
			vector[j] = v
		}
		layerCount, err := readU32(r)
		if err != nil {
			return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
		}
		layers := make([][]uint64, layerCount)
		for l := uint32(0); l < layerCount; l++ {
			neighborCount, err := readU32(r)
			if err != nil {
				return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
			}
			neighbors := make([]uint64, neighborCount)
			for n := range neighbors {
				nk, err := readU64(r)
				if err != nil {
					return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
				}
				neighbors[n] = nk
			}
			layers[l] = neighbors
		}
		ix.nodes[key] = &node{key: key, vector: vector, removed: removedByte == 1, layers: layers}
	}

	mapCount, err := readU32(r)
	if err != nil {
		return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
	}
	for i := uint32(0); i < mapCount; i++ {
		idLen, err := readU16(r)
		if err != nil {
			return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
		}
		key, err := readU64(r)
		if err != nil {
			return nil, model.NewError("vecindex.Load", model.KindIndexCorrupt, err)
		}
		id := string(idBytes)
		ix.idToKey[id] = key
		ix.keyToID[key] = id
	}

	return ix, nil
}

func writeU16(w *bufio.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU32(w *bufio.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU64(w *bufio.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeF32(w *bufio.Writer, v float32) error {
	return writeU32(w, math.Float32bits(v))
}

func readU16(r *bufio.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r *bufio.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r *bufio.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readF32(r *bufio.Reader) (float32, error) {
	v, err := readU32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}
