package pipeline

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/waymo-kitti/internal/fsutil"
)

// SegmentExt is the extension of segment files picked up from a data folder.
const SegmentExt = ".tfrecord"

// ResolveInputs returns the segment files to convert. With an empty listFile
// every *.tfrecord in dataDir is used, sorted by name. Otherwise listFile
// names one segment per line, relative to dataDir unless absolute; blank
// lines and lines starting with '#' are ignored.
func ResolveInputs(fsys fsutil.FileSystem, dataDir, listFile string) ([]string, error) {
	if listFile == "" {
		files, err := fsys.Glob(filepath.Join(dataDir, "*"+SegmentExt))
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no %s files in %s", SegmentExt, dataDir)
		}
		return files, nil
	}

	data, err := fsys.ReadFile(listFile)
	if err != nil {
		return nil, fmt.Errorf("read segment list: %w", err)
	}
	var files []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		name := strings.TrimSpace(sc.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		if !filepath.IsAbs(name) {
			name = filepath.Join(dataDir, name)
		}
		if !fsys.Exists(name) {
			return nil, fmt.Errorf("segment list line %d: %s does not exist", line, name)
		}
		files = append(files, name)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("segment list %s is empty", listFile)
	}
	return files, nil
}
