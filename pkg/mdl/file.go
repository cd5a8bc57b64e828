package mdl

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
)

// MDXPath returns the companion file path paired with mdlPath.
func MDXPath(mdlPath string) string {
	return strings.TrimSuffix(mdlPath, filepath.Ext(mdlPath)) + ".mdx"
}

// WriteFiles encodes m into mdlPath and its companion .mdx file. Both are
// staged as pending files in the target directory and replace the existing
// pair only once both encodes complete. If the .mdl replace fails after the
// .mdx one succeeded, the previous .mdx is put back.
func WriteFiles(mdlPath string, m *Model, opts Options) (*Plan, error) {
	log := opts.logger()
	mdxPath := MDXPath(mdlPath)
	dir := filepath.Dir(mdlPath)

	mdlFile, err := renameio.NewPendingFile(mdlPath,
		renameio.WithTempDir(dir), renameio.WithPermissions(0644))
	if err != nil {
		return nil, &IOError{Path: mdlPath, Err: err}
	}
	defer mdlFile.Cleanup()

	mdxFile, err := renameio.NewPendingFile(mdxPath,
		renameio.WithTempDir(dir), renameio.WithPermissions(0644))
	if err != nil {
		return nil, &IOError{Path: mdxPath, Err: err}
	}
	defer mdxFile.Cleanup()

	mdlBuf := bufio.NewWriter(mdlFile)
	mdxBuf := bufio.NewWriter(mdxFile)
	plan, err := Encode(mdlBuf, mdxBuf, m, opts)
	if err != nil {
		return nil, err
	}
	if err := mdlBuf.Flush(); err != nil {
		return nil, &IOError{Path: mdlPath, Err: err}
	}
	if err := mdxBuf.Flush(); err != nil {
		return nil, &IOError{Path: mdxPath, Err: err}
	}

	previous, err := os.ReadFile(mdxPath)
	hadPrevious := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &IOError{Path: mdxPath, Err: err}
	}

	if err := mdxFile.CloseAtomicallyReplace(); err != nil {
		return nil, &IOError{Path: mdxPath, Err: err}
	}
	if err := mdlFile.CloseAtomicallyReplace(); err != nil {
		restoreCompanion(log, mdxPath, previous, hadPrevious)
		return nil, &IOError{Path: mdlPath, Err: err}
	}

	log.Info("model written",
		zap.String("mdl", mdlPath),
		zap.String("mdx", mdxPath),
		zap.Int64("mdl_size", plan.StructuralSize),
		zap.Int64("mdx_size", plan.CompanionSize),
	)
	return plan, nil
}

func restoreCompanion(log *zap.Logger, mdxPath string, previous []byte, hadPrevious bool) {
	var err error
	if hadPrevious {
		err = renameio.WriteFile(mdxPath, previous, 0644)
	} else {
		err = os.Remove(mdxPath)
	}
	if err != nil {
		log.Warn("companion file not restored", zap.String("mdx", mdxPath), zap.Error(err))
	}
}
