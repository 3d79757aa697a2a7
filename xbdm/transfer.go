package xbdm

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
)

// FileStream is the content of a file being downloaded. Size is announced
// before any content arrives; Read yields exactly Size bytes then io.EOF.
// Close releases the connection and must always be called.
type FileStream struct {
	Size int64

	conn   *Conn
	stream io.Reader
}

// Read implements io.Reader.
func (f *FileStream) Read(p []byte) (int, error) {
	return f.stream.Read(p)
}

// Close closes the underlying connection.
func (f *FileStream) Close() error {
	return f.conn.Close()
}

// Download starts the transfer of the file at path. The returned stream is
// bound to ctx; cancelling it aborts the transfer.
func (c *Console) Download(ctx context.Context, path string) (*FileStream, error) {
	if path == "" {
		return nil, &ValidationError{Field: "file path", Message: "path is empty"}
	}

	conn, err := c.open(ctx, "getfile")
	if err != nil {
		return nil, err
	}

	size, err := c.startDownload(conn, path)
	if err != nil {
		conn.Close()
		return nil, err
	}

	conn.log.Debug().Str("path", path).Uint32("size", size).Msg("download started")
	return &FileStream{
		Size:   int64(size),
		conn:   conn,
		stream: conn.Stream(int64(size)),
	}, nil
}

func (c *Console) startDownload(conn *Conn, path string) (uint32, error) {
	if err := conn.WriteCommand(NewGetFileCommand(path), true); err != nil {
		return 0, err
	}
	if _, err := conn.ReadHeader(StatusBinaryResponseFollows); err != nil {
		return 0, err
	}
	return conn.ReadBinaryLength()
}

// DownloadFunc receives each file of a directory download. relPath is
// relative to the downloaded directory and uses ConsoleSeparator.
type DownloadFunc func(relPath string, file *FileStream) error

// DownloadDirectory downloads every file below dirPath depth-first, one
// transfer at a time. Whatever fn leaves unread of a file is drained before
// the next transfer starts, so at most one connection is open at any time.
func (c *Console) DownloadDirectory(ctx context.Context, dirPath string, fn DownloadFunc) error {
	return c.downloadDirectory(ctx, dirPath, dirPath, fn)
}

func (c *Console) downloadDirectory(ctx context.Context, dirPath, basePath string, fn DownloadFunc) error {
	files, err := c.Files(ctx, dirPath)
	if err != nil {
		return err
	}

	for _, f := range files {
		filePath := ConsoleSeparator.Join(dirPath, f.Name)
		if f.IsDirectory {
			if err := c.downloadDirectory(ctx, filePath, basePath, fn); err != nil {
				return err
			}
			continue
		}

		rel, _ := ConsoleSeparator.Rel(basePath, filePath)
		if err := c.downloadOne(ctx, filePath, rel, fn); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) downloadOne(ctx context.Context, filePath, rel string, fn DownloadFunc) error {
	stream, err := c.Download(ctx, filePath)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := fn(rel, stream); err != nil {
		return err
	}
	if _, err := io.Copy(io.Discard, stream); err != nil {
		return fmt.Errorf("drain %s: %w", filePath, err)
	}
	return stream.Close()
}

// Upload sends size bytes read from src to dirPath\name. Exactly size bytes
// are pushed; a source that ends early fails with a TransferError.
// Cancelling ctx aborts the upload.
func (c *Console) Upload(ctx context.Context, dirPath, name string, size int64, src io.Reader) error {
	if dirPath == "" || name == "" {
		return &ValidationError{Field: "upload destination", Message: "directory and file name are required"}
	}
	if size < 0 {
		return &ValidationError{Field: "file size", Value: fmt.Sprint(size), Message: "size is negative"}
	}

	conn, err := c.open(ctx, "sendfile")
	if err != nil {
		return err
	}
	defer conn.Close()

	filePath := ConsoleSeparator.Join(dirPath, name)
	if err := conn.WriteCommand(NewSendFileCommand(filePath, uint64(size)), false); err != nil {
		return err
	}
	if _, err := conn.ReadHeader(StatusSendBinaryData); err != nil {
		return err
	}

	n, err := io.Copy(conn, io.LimitReader(src, size))
	if err != nil {
		return err
	}
	if n != size {
		return &TransferError{
			Op:  "write",
			Err: fmt.Errorf("source ended after %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF),
		}
	}
	conn.log.Debug().Str("path", filePath).Int64("size", size).Msg("upload sent")

	if err := conn.WriteTerminator(); err != nil {
		return err
	}
	_, err = conn.ReadHeader(StatusOK)
	return err
}

// UploadDirectory copies the tree rooted at root in fsys into
// dirPath\<base of root>. Directories that already exist are reused.
// Files are uploaded one at a time.
func (c *Console) UploadDirectory(ctx context.Context, fsys fs.FS, root, dirPath string) error {
	if err := ValidateAddress(c.address); err != nil {
		return err
	}

	base := HostSeparator.Base(root)
	if base == "" {
		return &ValidationError{Field: "source directory", Value: root, Message: "directory has no name"}
	}

	return fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, _ := HostSeparator.Rel(root, p)
		remote := ConsoleSeparator.Join(dirPath, base, HostSeparator.Convert(rel, ConsoleSeparator))

		if d.IsDir() {
			err := c.CreateDirectory(ctx, ConsoleSeparator.Dir(remote), ConsoleSeparator.Base(remote))
			if err != nil && !errors.Is(err, ErrAlreadyExists) {
				return err
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		return c.Upload(ctx, ConsoleSeparator.Dir(remote), ConsoleSeparator.Base(remote), info.Size(), f)
	})
}

// Screenshot captures the framebuffer and returns it as a linear image.
func (c *Console) Screenshot(ctx context.Context) (*image.RGBA, error) {
	conn, err := c.open(ctx, "screenshot")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.WriteCommand(NewScreenshotCommand(), true); err != nil {
		return nil, err
	}
	if _, err := conn.ReadHeader(StatusBinaryResponseFollows); err != nil {
		return nil, err
	}

	info, err := conn.ReadLine()
	if err != nil {
		return nil, err
	}
	spec, err := ParseFramebufferSpec(info)
	if err != nil {
		return nil, err
	}
	conn.log.Debug().
		Uint32("width", spec.Width).
		Uint32("height", spec.Height).
		Uint32("format", spec.Format).
		Uint32("size", spec.FramebufferSize).
		Msg("framebuffer")

	framebuffer, err := conn.ReadBytes(int(spec.FramebufferSize))
	if err != nil {
		return nil, err
	}
	return Deswizzle(framebuffer, spec)
}
