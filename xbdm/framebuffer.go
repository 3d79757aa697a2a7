package xbdm

import (
	"fmt"
	"image"
	"math/bits"
)

// FramebufferSpec describes the raw framebuffer that follows the info line
// of a screenshot response.
type FramebufferSpec struct {
	Pitch           uint32 // bytes per (padded) row
	Width           uint32
	Height          uint32
	Format          uint32 // D3DFORMAT bit-field, see SwizzleFormat
	OffsetX         uint32
	OffsetY         uint32
	FramebufferSize uint32
}

// ParseFramebufferSpec parses the screenshot info line, e.g.
//
//	pitch=0x00001400 width=0x00000500 height=0x000002d0 format=0x18280186 ...
func ParseFramebufferSpec(line string) (FramebufferSpec, error) {
	var spec FramebufferSpec
	fields := []struct {
		name string
		dst  *uint32
	}{
		{"pitch", &spec.Pitch},
		{"width", &spec.Width},
		{"height", &spec.Height},
		{"format", &spec.Format},
		{"offsetx", &spec.OffsetX},
		{"offsety", &spec.OffsetY},
		{"framebuffersize", &spec.FramebufferSize},
	}
	for _, f := range fields {
		v, err := Uint32Property(line, f.name)
		if err != nil {
			return FramebufferSpec{}, err
		}
		*f.dst = v
	}
	return spec, nil
}

// GPU texture format constants (Xenos D3DFORMAT encoding).
const (
	gpuTextureFormat8888 = 6
	gpuEndian8in32       = 2
	gpuSignUnsigned      = 0
)

// Swizzle selects the source of a destination channel.
type Swizzle uint8

const (
	SwizzleX Swizzle = iota
	SwizzleY
	SwizzleZ
	SwizzleW
	SwizzleZero
	SwizzleOne
)

// D3DFORMAT bit-field masks.
const (
	fmtTextureFormatMask = 0x0000003f
	fmtEndianMask        = 0x000000c0
	fmtTiledMask         = 0x00000100
	fmtSignXMask         = 0x00000600
	fmtSignYMask         = 0x00001800
	fmtSignZMask         = 0x00006000
	fmtSignWMask         = 0x00018000
	fmtSwizzleXMask      = 0x001c0000
	fmtSwizzleYMask      = 0x00e00000
	fmtSwizzleZMask      = 0x07000000
	fmtSwizzleWMask      = 0x38000000
)

// SwizzleFormat is the decoded form of a 32 bit format code.
type SwizzleFormat struct {
	TextureFormat uint32
	Endian        uint32
	Tiled         bool
	Sign          [4]uint32
	Swizzle       [4]Swizzle
}

// DecodeFormat splits a format code into its bit-fields.
func DecodeFormat(format uint32) SwizzleFormat {
	return SwizzleFormat{
		TextureFormat: extract(format, fmtTextureFormatMask),
		Endian:        extract(format, fmtEndianMask),
		Tiled:         extract(format, fmtTiledMask) != 0,
		Sign: [4]uint32{
			extract(format, fmtSignXMask),
			extract(format, fmtSignYMask),
			extract(format, fmtSignZMask),
			extract(format, fmtSignWMask),
		},
		Swizzle: [4]Swizzle{
			Swizzle(extract(format, fmtSwizzleXMask)),
			Swizzle(extract(format, fmtSwizzleYMask)),
			Swizzle(extract(format, fmtSwizzleZMask)),
			Swizzle(extract(format, fmtSwizzleWMask)),
		},
	}
}

func extract(value, mask uint32) uint32 {
	return (value & mask) >> bits.TrailingZeros32(mask)
}

// supported reports whether f is the only layout the deswizzler handles.
func (f SwizzleFormat) supported() bool {
	if f.TextureFormat != gpuTextureFormat8888 || f.Endian != gpuEndian8in32 || !f.Tiled {
		return false
	}
	for _, s := range f.Sign {
		if s != gpuSignUnsigned {
			return false
		}
	}
	for _, s := range f.Swizzle[:3] {
		if s > SwizzleOne {
			return false
		}
	}
	return true
}

// Xenos tiles are 32x32 pixels.
const (
	tileSize      = 32
	inTileMask    = tileSize - 1
	tileMask      = ^uint32(inTileMask)
	tileArea      = tileSize * tileSize
	bytesPerTexel = 4
)

// TiledIndex returns the texel index holding pixel (x, y) of a tiled
// surface whose rows are pitch bytes apart.
func TiledIndex(x, y, pitch uint32) uint32 {
	return uint32(tiledIndex(x, y, pitch))
}

// tiledIndex is TiledIndex without the 32 bit wraparound.
func tiledIndex(x, y, pitch uint32) uint64 {
	tileRow := uint64(y&tileMask) * uint64(pitch/bytesPerTexel)
	subTileRow := uint64(((y&inTileMask)>>1)*64 + (y&1)*4)
	tileCol := uint64(x/tileSize) * tileArea
	subTileCol := uint64(((x%tileSize)/4*8 + x%4) ^ ((y & 8) << 2))
	return tileRow + subTileRow + tileCol + subTileCol
}

// Deswizzle converts a tiled framebuffer into a linear RGBA image. Alpha is
// always opaque.
func Deswizzle(framebuffer []byte, spec FramebufferSpec) (*image.RGBA, error) {
	format := DecodeFormat(spec.Format)
	if !format.supported() {
		return nil, &UnsupportedFormatError{Format: spec.Format}
	}

	size := fmt.Sprintf("%dx%d framebuffer", spec.Width, spec.Height)
	if spec.Width == 0 || spec.Height == 0 {
		return nil, newMalformedError(size, "empty image")
	}
	// Tiling maps every pixel to a distinct texel.
	if uint64(spec.Width)*uint64(spec.Height) > uint64(len(framebuffer)/bytesPerTexel) {
		return nil, newMalformedError(size, "pixels do not fit in %d bytes", len(framebuffer))
	}

	width, height := int(spec.Width), int(spec.Height)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	channels := format.Swizzle[:3]

	for y := uint32(0); y < spec.Height; y++ {
		row := img.Pix[int(y)*img.Stride:]
		for x := uint32(0); x < spec.Width; x++ {
			base := tiledIndex(x, y, spec.Pitch) * bytesPerTexel
			if base+bytesPerTexel > uint64(len(framebuffer)) {
				return nil, newMalformedError(fmt.Sprintf("%d byte framebuffer", len(framebuffer)),
					"pixel (%d, %d) maps to byte %d past the end", x, y, base)
			}

			px := row[x*4 : x*4+4]
			for ch, sel := range channels {
				switch sel {
				case SwizzleZero:
					px[ch] = 0
				case SwizzleOne:
					px[ch] = 0xFF
				default:
					px[ch] = framebuffer[base+uint64(sel)]
				}
			}
			px[3] = 0xFF
		}
	}
	return img, nil
}
