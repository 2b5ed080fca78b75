package filters

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
	"pubsub2inbox/internal/common/errors"
)

const defaultHash = "md5"

var hashes = map[string]func() hash.Hash{
	"md5":      md5.New,
	"sha1":     sha1.New,
	"sha224":   sha256.New224,
	"sha256":   sha256.New,
	"sha384":   sha512.New384,
	"sha512":   sha512.New,
	"sha3_224": sha3.New224,
	"sha3_256": sha3.New256,
	"sha3_384": sha3.New384,
	"sha3_512": sha3.New512,
	"blake2b": func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	},
	"blake2s": func() hash.Hash {
		h, _ := blake2s.New256(nil)
		return h
	},
	"xxhash64": func() hash.Hash {
		return xxhash.New()
	},
}

// HashAlgorithms lists the names accepted by hash_string
func HashAlgorithms() []string {
	names := make([]string, 0, len(hashes))
	for name := range hashes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeBase64 accepts standard encoding with or without padding and ignores
// embedded line breaks
func decodeBase64(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
	}
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid base64 input: %v", err))
	}
	return data, nil
}

func (l *Library) b64decode(s string) (string, error) {
	data, err := decodeBase64(s)
	if err != nil {
		return "", l.fail("b64decode", err)
	}
	if !utf8.Valid(data) {
		return "", l.fail("b64decode", errors.ValidationError("decoded base64 is not valid UTF-8 text"))
	}
	return string(data), nil
}

func b64encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func (l *Library) readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", l.fail("read_file", errors.NotFoundError(fmt.Sprintf("file %s", path)).WithContext("error", err.Error()))
	}
	return string(data), nil
}

func (l *Library) readFileB64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", l.fail("read_file_b64", errors.NotFoundError(fmt.Sprintf("file %s", path)).WithContext("error", err.Error()))
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// filemagic sniffs the MIME type of base64 encoded contents
func (l *Library) filemagic(contents string) (string, error) {
	data, err := decodeBase64(contents)
	if err != nil {
		return "", l.fail("filemagic", err)
	}
	mime := mimetype.Detect(data).String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime), nil
}

// hashString returns the lowercase hex digest of s. Arguments: [algorithm] s.
func (l *Library) hashString(args ...string) (string, error) {
	var algorithm, s string
	switch len(args) {
	case 1:
		algorithm, s = defaultHash, args[0]
	case 2:
		algorithm, s = strings.ToLower(args[0]), args[1]
	default:
		return "", l.fail("hash_string", errors.ValidationError("hash_string expects [algorithm] text"))
	}

	newHash, ok := hashes[algorithm]
	if !ok {
		return "", l.fail("hash_string", errors.ValidationError(fmt.Sprintf("unsupported hash algorithm %q (supported: %s)", algorithm, strings.Join(HashAlgorithms(), ", "))))
	}
	h := newHash()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil)), nil
}
