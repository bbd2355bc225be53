package speech

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// compress 按帧头声明的方式压缩负载。
func compress(data []byte, method compression) ([]byte, error) {
	switch method {
	case compressionNone:
		return data, nil
	case compressionGzip:
		var buf bytes.Buffer
		writer := gzip.NewWriter(&buf)
		if _, err := writer.Write(data); err != nil {
			writer.Close()
			return nil, fmt.Errorf("gzip write failed: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("gzip close failed: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", method)
	}
}

// decompress 解压服务端返回的负载。
func decompress(data []byte, method compression) ([]byte, error) {
	switch method {
	case compressionNone:
		return data, nil
	case compressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader creation failed: %w", err)
		}
		defer reader.Close()

		result, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip read failed: %w", err)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", method)
	}
}
