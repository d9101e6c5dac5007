package kitti

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/banshee-data/waymo-kitti/internal/fsutil"
)

// ShuffleFile is the pairing record written at the root of a shuffled copy.
const ShuffleFile = "shuffle.txt"

// Pair maps an original capture name to its name in the shuffled copy.
type Pair struct {
	Prev, New string
}

// Shuffle copies the dataset under src to dst with capture names permuted by
// rng. Captures are discovered from the velodyne directory; every record of a
// capture moves together, including per-camera image suffixes. The pairing
// is written to dst/shuffle.txt as "prev/new" lines in source order.
func Shuffle(fsys fsutil.FileSystem, src, dst string, rng *rand.Rand) ([]Pair, error) {
	clouds, err := fsys.Glob(filepath.Join(src, DirVelodyne, "*.bin"))
	if err != nil {
		return nil, err
	}
	if len(clouds) == 0 {
		return nil, fmt.Errorf("no captures under %s", filepath.Join(src, DirVelodyne))
	}
	names := make([]string, len(clouds))
	for i, c := range clouds {
		names[i] = strings.TrimSuffix(filepath.Base(c), ".bin")
	}

	pairs := make([]Pair, len(names))
	for i, j := range rng.Perm(len(names)) {
		pairs[i] = Pair{Prev: names[i], New: names[j]}
	}

	for _, d := range Dirs {
		if err := fsys.MkdirAll(filepath.Join(dst, d), 0755); err != nil {
			return nil, err
		}
		for _, p := range pairs {
			if err := copyRecords(fsys, filepath.Join(src, d), filepath.Join(dst, d), p); err != nil {
				return nil, err
			}
		}
	}

	var b bytes.Buffer
	for _, p := range pairs {
		fmt.Fprintf(&b, "%s/%s\n", p.Prev, p.New)
	}
	if err := fsys.WriteFile(filepath.Join(dst, ShuffleFile), b.Bytes(), 0644); err != nil {
		return nil, err
	}
	return pairs, nil
}

// copyRecords copies "<prev>.<ext>" and "<prev>_<cam>.<ext>" files of one
// record directory under their new name.
func copyRecords(fsys fsutil.FileSystem, srcDir, dstDir string, p Pair) error {
	var matches []string
	for _, pattern := range []string{p.Prev + ".*", p.Prev + "_*"} {
		m, err := fsys.Glob(filepath.Join(srcDir, pattern))
		if err != nil {
			return err
		}
		matches = append(matches, m...)
	}
	for _, m := range matches {
		data, err := fsys.ReadFile(m)
		if err != nil {
			return err
		}
		rest := strings.TrimPrefix(filepath.Base(m), p.Prev)
		if err := fsys.WriteFile(filepath.Join(dstDir, p.New+rest), data, 0644); err != nil {
			return fmt.Errorf("copy %s: %w", m, err)
		}
	}
	return nil
}

// ParseShuffle reads a pairing record written by Shuffle.
func ParseShuffle(data []byte) ([]Pair, error) {
	var pairs []Pair
	for i, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		prev, next, ok := strings.Cut(line, "/")
		if !ok || prev == "" || next == "" {
			return nil, fmt.Errorf("%w: shuffle line %d: %q", ErrMalformedRecord, i+1, line)
		}
		pairs = append(pairs, Pair{Prev: prev, New: next})
	}
	return pairs, nil
}
