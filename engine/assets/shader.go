package assets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/core"
)

const spirvMagic uint32 = 0x07230203

// ValidateSPIRV checks that code is a whole number of words and starts with
// the SPIR-V magic number.
func ValidateSPIRV(code []byte) error {
	if len(code) < 4 || len(code)%4 != 0 {
		return fmt.Errorf("%w: %d bytes is not a whole number of words", ErrInvalidShader, len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return fmt.Errorf("%w: magic %#08x", ErrInvalidShader, magic)
	}
	return nil
}

// ShaderCache turns GLSL sources into SPIR-V, keeping compiled bytecode in
// a cache directory. A cached file is reused while it is at least as new as
// its source.
type ShaderCache struct {
	logger   *log.Logger
	dir      string
	compiler string
}

func NewShaderCache(logger *log.Logger, dir, compiler string) *ShaderCache {
	return &ShaderCache{
		logger:   core.OrDiscard(logger).WithPrefix("shaders"),
		dir:      dir,
		compiler: compiler,
	}
}

// CachePath is where the bytecode of src is kept: <dir>/<base name>.spv.
func (c *ShaderCache) CachePath(src string) string {
	return filepath.Join(c.dir, filepath.Base(src)+".spv")
}

// Load returns the SPIR-V for src. Files already ending in .spv are read
// and validated as they are.
func (c *ShaderCache) Load(src string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(src), ".spv") {
		return readSPIRV(src)
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	out := c.CachePath(src)
	cacheInfo, err := os.Stat(out)
	switch {
	case err == nil && !cacheInfo.ModTime().Before(srcInfo.ModTime()):
		c.logger.Debug("shader cache hit", "src", src)
		return readSPIRV(out)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	if err := c.compile(src, out); err != nil {
		return nil, err
	}
	return readSPIRV(out)
}

func (c *ShaderCache) compile(src, out string) error {
	compiler, err := exec.LookPath(c.compiler)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCompilerNotFound, c.compiler)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	output, err := exec.Command(compiler, src, "-o", out).CombinedOutput()
	if err != nil {
		c.logger.Error("shader compilation failed", "src", src, "output", strings.TrimSpace(string(output)))
		return fmt.Errorf("compile %s: %w", src, err)
	}
	c.logger.Info("shader compiled", "src", src, "out", out)
	return nil
}

func readSPIRV(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateSPIRV(code); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return code, nil
}
