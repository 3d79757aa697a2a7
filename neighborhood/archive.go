// =============================================================================
// archive.go - Directory Downloads to Disk or Zip
// =============================================================================
//
// A remote directory is either mirrored into a local directory or, when the
// destination ends in ".zip", streamed straight into a zip archive without
// touching the disk in between. Both walk the remote tree through
// Console.DownloadDirectory, so only one transfer is open at a time.
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/ClementDreptin/OpenNeighborhood/xbdm"
)

// isZipPath reports whether a download destination names a zip archive.
func isZipPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// downloadTree mirrors remoteDir into localDir.
func downloadTree(ctx context.Context, c *xbdm.Console, remoteDir, localDir string) (int, error) {
	count := 0
	err := c.DownloadDirectory(ctx, remoteDir, func(rel string, file *xbdm.FileStream) error {
		dst := filepath.Join(localDir, filepath.FromSlash(xbdm.ConsoleSeparator.Convert(rel, xbdm.HostSeparator)))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := writeFile(dst, rel, file); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// writeFile copies file to dst, removing dst again when the copy fails.
func writeFile(dst, name string, file *xbdm.FileStream) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}

	p := newProgress(name, file.Size)
	_, err = io.Copy(io.MultiWriter(f, p), file)
	p.finish()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return fmt.Errorf("download %s: %w", name, err)
	}
	return nil
}

// zipTree streams remoteDir into a zip archive at zipPath. Entries are
// stored under the directory's own name, or the drive letter for a drive
// root.
func zipTree(ctx context.Context, c *xbdm.Console, remoteDir, zipPath string) (int, error) {
	f, err := os.Create(zipPath)
	if err != nil {
		return 0, err
	}

	count, err := writeZip(ctx, c, remoteDir, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(zipPath)
		return 0, err
	}
	return count, nil
}

func writeZip(ctx context.Context, c *xbdm.Console, remoteDir string, w io.Writer) (int, error) {
	zw := zip.NewWriter(w)
	root := strings.TrimSuffix(xbdm.ConsoleSeparator.Base(remoteDir), ":")
	modified := time.Now()

	count := 0
	err := c.DownloadDirectory(ctx, remoteDir, func(rel string, file *xbdm.FileStream) error {
		name := xbdm.ConsoleSeparator.Convert(xbdm.ConsoleSeparator.Join(root, rel), xbdm.HostSeparator)
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return err
		}

		p := newProgress(rel, file.Size)
		_, err = io.Copy(io.MultiWriter(entry, p), file)
		p.finish()
		if err != nil {
			return fmt.Errorf("download %s: %w", rel, err)
		}
		count++
		return nil
	})
	if err != nil {
		zw.Close()
		return 0, err
	}
	return count, zw.Close()
}
