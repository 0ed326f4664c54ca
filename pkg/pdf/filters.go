package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"errors"
	"fmt"
	"io"
)

type decodeFunc func(data []byte, params Dictionary) ([]byte, error)

// decoders holds the general-purpose filters. Image codecs are not
// decoded and pass through unchanged.
var decoders = map[Name]decodeFunc{
	"FlateDecode":     flateDecode,
	"Fl":              flateDecode,
	"ASCIIHexDecode":  func(d []byte, _ Dictionary) ([]byte, error) { return asciiHexDecode(d) },
	"AHx":             func(d []byte, _ Dictionary) ([]byte, error) { return asciiHexDecode(d) },
	"ASCII85Decode":   func(d []byte, _ Dictionary) ([]byte, error) { return ascii85Decode(d) },
	"A85":             func(d []byte, _ Dictionary) ([]byte, error) { return ascii85Decode(d) },
	"LZWDecode":       lzwDecode,
	"LZW":             lzwDecode,
	"RunLengthDecode": func(d []byte, _ Dictionary) ([]byte, error) { return runLengthDecode(d) },
	"RL":              func(d []byte, _ Dictionary) ([]byte, error) { return runLengthDecode(d) },
}

var imageFilters = map[Name]bool{
	"DCTDecode": true, "DCT": true, "JPXDecode": true,
	"CCITTFaxDecode": true, "CCF": true, "JBIG2Decode": true,
}

// applyFilter applies a single filter to decode data
func applyFilter(data []byte, filter Name, params Dictionary) ([]byte, error) {
	if dec, ok := decoders[filter]; ok {
		return dec(data, params)
	}
	if imageFilters[filter] {
		return data, nil
	}
	return nil, fmt.Errorf("unsupported filter: %s", filter)
}

// canDecode reports whether every filter of the chain is one this package
// can remove
func canDecode(filters []Name) bool {
	for _, f := range filters {
		if _, ok := decoders[f]; !ok {
			return false
		}
	}
	return true
}

// flateDecode decompresses zlib data and undoes any predictor
func flateDecode(data []byte, params Dictionary) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	decoded, err := io.ReadAll(r)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	if predictor, ok := params.GetInt("Predictor"); ok && predictor >= 10 {
		return unpredictPNG(decoded, params)
	}
	return decoded, nil
}

// flateEncode compresses data with zlib
func flateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func intParam(params Dictionary, key string, def int) int {
	if v, ok := params.GetInt(key); ok {
		return int(v)
	}
	return def
}

// unpredictPNG reverses the PNG row filters used by xref streams and images
func unpredictPNG(data []byte, params Dictionary) ([]byte, error) {
	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)
	columns := intParam(params, "Columns", 1)

	bpp := (colors*bpc + 7) / 8
	rowLen := (columns*colors*bpc + 7) / 8
	if rowLen <= 0 || len(data)%(rowLen+1) != 0 {
		return data, nil
	}

	rows := len(data) / (rowLen + 1)
	out := make([]byte, rows*rowLen)
	prev := make([]byte, rowLen)
	for row := 0; row < rows; row++ {
		in := data[row*(rowLen+1)+1 : (row+1)*(rowLen+1)]
		cur := out[row*rowLen : (row+1)*rowLen]
		kind := data[row*(rowLen+1)]
		for i := 0; i < rowLen; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch kind {
			case 1:
				cur[i] = in[i] + left
			case 2:
				cur[i] = in[i] + up
			case 3:
				cur[i] = in[i] + byte((int(left)+int(up))/2)
			case 4:
				cur[i] = in[i] + paeth(left, up, upLeft)
			default:
				cur[i] = in[i]
			}
		}
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func hexValue(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}

// asciiHexDecode decodes ASCII hex encoded data
func asciiHexDecode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)
	var hi byte
	half := false
	for _, b := range data {
		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		v, ok := hexValue(b)
		if !ok {
			return nil, fmt.Errorf("invalid hex character: %c", b)
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return out, nil
}

// ascii85Decode decodes ASCII base-85 data, with or without the <~ ~> frame
func ascii85Decode(data []byte) ([]byte, error) {
	src := make([]byte, 0, len(data))
	for _, b := range data {
		if !isWhitespace(b) {
			src = append(src, b)
		}
	}
	src = bytes.TrimPrefix(src, []byte("<~"))
	if i := bytes.Index(src, []byte("~>")); i >= 0 {
		src = src[:i]
	}
	dst := make([]byte, 4*len(src)+4)
	n, _, err := ascii85.Decode(dst, src, true)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// lzwDecode decodes LZW data; EarlyChange defaults to 1
func lzwDecode(data []byte, params Dictionary) ([]byte, error) {
	const (
		clearCode = 256
		eodCode   = 257
	)
	early := intParam(params, "EarlyChange", 1)

	table := make([][]byte, 4096)
	for i := 0; i < 256; i++ {
		table[i] = []byte{byte(i)}
	}
	next, width := 258, 9
	var out, prev []byte

	bit := 0
	read := func() int {
		if bit+width > len(data)*8 {
			return eodCode
		}
		code := 0
		for i := 0; i < width; i++ {
			if data[(bit+i)/8]&(0x80>>uint((bit+i)%8)) != 0 {
				code |= 1 << uint(width-1-i)
			}
		}
		bit += width
		return code
	}

	for {
		code := read()
		if code == eodCode {
			break
		}
		if code == clearCode {
			next, width, prev = 258, 9, nil
			continue
		}

		var entry []byte
		switch {
		case code < next && table[code] != nil:
			entry = table[code]
		case code == next && prev != nil:
			entry = append(append([]byte{}, prev...), prev[0])
		default:
			return nil, fmt.Errorf("invalid LZW code: %d", code)
		}
		out = append(out, entry...)

		if prev != nil && next < 4096 {
			table[next] = append(append([]byte{}, prev...), entry[0])
			next++
			if next+early >= 1<<uint(width) && width < 12 {
				width++
			}
		}
		prev = entry
	}
	return out, nil
}

// runLengthDecode decodes run-length encoded data
func runLengthDecode(data []byte) ([]byte, error) {
	var out []byte
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			if i+n+1 > len(data) {
				return nil, errors.New("unexpected end of data")
			}
			out = append(out, data[i:i+n+1]...)
			i += n + 1
		default:
			if i >= len(data) {
				return nil, errors.New("unexpected end of data")
			}
			out = append(out, bytes.Repeat(data[i:i+1], 257-n)...)
			i++
		}
	}
	return out, nil
}
