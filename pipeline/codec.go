// Copyright 2025 The nalix Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/xtea"

	"github.com/ppn-systems/nalix/packet"
)

func newError(format string, args ...any) error {
	format = "pipeline: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrInvalidKey 密钥长度非法 统一要求 32 字节
	ErrInvalidKey = newError("invalid key: 32 bytes required")

	// ErrUnknownAlgo 未知的对称加密算法
	ErrUnknownAlgo = newError("unknown symmetric algo")

	// ErrCipherTooShort 密文长度不足以容纳 nonce/IV 前缀
	ErrCipherTooShort = newError("ciphertext too short")
)

const (
	// KeySize 对称密钥长度 ChaCha20-Poly1305 要求 32 字节 XTEA 取其前 16 字节
	KeySize = 32
)

// CompressBody 压缩 Body 字节
func CompressBody(b []byte) []byte {
	return snappy.Encode(nil, b)
}

// DecompressBody 解压 Body 字节
func DecompressBody(b []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, newError("decompress: %v", err)
	}
	if out == nil {
		// 空 Body 解压结果为非 nil 的空切片
		out = []byte{}
	}
	return out, nil
}

// EncryptBody 按算法加密 Body 字节
//
// nonce/IV 随机生成并作为密文前缀 解密方从前缀读回 无需带外传递
func EncryptBody(b, key []byte, algo packet.SymmetricAlgo) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	switch algo {
	case packet.AlgoChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, newError("chacha20poly1305: %v", err)
		}

		nonce := make([]byte, chacha20poly1305.NonceSize)
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return nil, newError("read nonce: %v", err)
		}
		return aead.Seal(nonce, nonce, b, nil), nil

	case packet.AlgoXtea:
		block, err := xtea.NewCipher(key[:16])
		if err != nil {
			return nil, newError("xtea: %v", err)
		}

		iv := make([]byte, xtea.BlockSize)
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return nil, newError("read iv: %v", err)
		}

		out := make([]byte, xtea.BlockSize+len(b))
		copy(out, iv)
		cipher.NewCTR(block, iv).XORKeyStream(out[xtea.BlockSize:], b)
		return out, nil
	}

	return nil, errors.WithMessagef(ErrUnknownAlgo, "algo (%s)", algo)
}

// DecryptBody 按算法解密 Body 字节
func DecryptBody(b, key []byte, algo packet.SymmetricAlgo) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	switch algo {
	case packet.AlgoChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, newError("chacha20poly1305: %v", err)
		}
		if len(b) < chacha20poly1305.NonceSize {
			return nil, ErrCipherTooShort
		}

		nonce, ciphertext := b[:chacha20poly1305.NonceSize], b[chacha20poly1305.NonceSize:]
		out, err := aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, newError("open: %v", err)
		}
		return out, nil

	case packet.AlgoXtea:
		block, err := xtea.NewCipher(key[:16])
		if err != nil {
			return nil, newError("xtea: %v", err)
		}
		if len(b) < xtea.BlockSize {
			return nil, ErrCipherTooShort
		}

		iv, ciphertext := b[:xtea.BlockSize], b[xtea.BlockSize:]
		out := make([]byte, len(ciphertext))
		cipher.NewCTR(block, iv).XORKeyStream(out, ciphertext)
		return out, nil
	}

	return nil, errors.WithMessagef(ErrUnknownAlgo, "algo (%s)", algo)
}
