package binindex

import (
	"bufio"
	"context"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// ReadFile reads an index file.  Paths ending in ".csi" are parsed as
// .csi, everything else as .bai.  The path may be anything accepted by
// grailbio/base/file, including S3 URLs.
func ReadFile(ctx context.Context, path string) (idx *Index, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	if strings.HasSuffix(path, ".csi") {
		idx, err = ReadCSI(in.Reader(ctx))
	} else {
		idx, err = ReadBAI(bufio.NewReader(in.Reader(ctx)))
	}
	if err != nil {
		return nil, errors.E(err, path)
	}
	return idx, nil
}

// WriteFile writes idx to path, choosing the format the way ReadFile
// does.  Existing contents of the file is clobbered.
func WriteFile(ctx context.Context, path string, idx *Index) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, path)
	}
	e := errors.Once{}
	if strings.HasSuffix(path, ".csi") {
		e.Set(WriteCSI(out.Writer(ctx), idx))
	} else {
		bw := bufio.NewWriter(out.Writer(ctx))
		e.Set(WriteBAI(bw, idx))
		e.Set(bw.Flush())
	}
	e.Set(out.Close(ctx))
	if e.Err() != nil {
		return errors.E(e.Err(), path)
	}
	return nil
}
