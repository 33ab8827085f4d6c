package formats

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// RootFileName returns the root file name for a map.
func RootFileName(name string) string {
	return name + ".wmo"
}

// GroupFileName returns the file name of group i of a map.
func GroupFileName(name string, i int) string {
	return fmt.Sprintf("%s_%03d.wmo", name, i)
}

// WriteMap writes the root file and one file per group into dir.
// Every file is written to a temporary path first and renamed on success, so
// a failed write never leaves a truncated file under the final name.
func WriteMap(dir, name string, root *Root) error {
	if err := root.validateGroups(); err != nil {
		return err
	}

	if err := writeFileAtomic(filepath.Join(dir, RootFileName(name)), func(w io.Writer) error {
		return WriteRoot(w, root)
	}); err != nil {
		return err
	}

	for i, g := range root.Groups {
		path := filepath.Join(dir, GroupFileName(name, i))
		if err := writeFileAtomic(path, func(w io.Writer) error {
			return WriteGroup(w, g)
		}); err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}
	}
	return nil
}

func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming to %s: %w", path, err)
	}
	return nil
}

// ReadMap reads the root file of a map and its NumGroups group files.
func ReadMap(dir, name string, opts ...ReadOption) (*Root, error) {
	root, err := ParseRootFile(filepath.Join(dir, RootFileName(name)), opts...)
	if err != nil {
		return nil, err
	}

	for i := 0; i < int(root.Header.NumGroups); i++ {
		g, err := ParseGroupFile(filepath.Join(dir, GroupFileName(name, i)), opts...)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		root.Groups = append(root.Groups, g)
	}
	return root, nil
}
