package idgen

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"

	"github.com/ceyewan/idforge/xerrors"
)

// Encoding ID 的字符串表示
type Encoding string

const (
	EncodingDecimal Encoding = "decimal"
	EncodingHex     Encoding = "hex"
	EncodingBase2   Encoding = "base2"
	EncodingBase32  Encoding = "base32" // 字母表 ybndrfg8ejkmcpqxot1uwisza345h769，非 RFC 4648 与 z-base-32
	EncodingBase36  Encoding = "base36"
	EncodingBase58  Encoding = "base58" // Flickr 字母表，小写在前
	EncodingBase64  Encoding = "base64"
)

// Encodings 返回所有支持的编码，顺序固定
func Encodings() []Encoding {
	return []Encoding{
		EncodingDecimal, EncodingHex, EncodingBase2,
		EncodingBase32, EncodingBase36, EncodingBase58, EncodingBase64,
	}
}

// ParseEncoding 解析编码名，空串视为 decimal
func ParseEncoding(s string) (Encoding, error) {
	enc := Encoding(strings.ToLower(strings.TrimSpace(s)))
	if enc == "" {
		return EncodingDecimal, nil
	}
	for _, e := range Encodings() {
		if e == enc {
			return enc, nil
		}
	}
	return "", xerrors.WithCode(xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown encoding %q", s), "unknown_encoding")
}

// Format 将 ID 渲染为指定编码的字符串，ID 不能为负
func Format(id int64, enc Encoding) (string, error) {
	if id < 0 {
		return "", xerrors.Wrapf(xerrors.ErrInvalidInput, "id %d is negative", id)
	}
	sid := snowflake.ParseInt64(id)
	switch enc {
	case EncodingDecimal, "":
		return sid.String(), nil
	case EncodingHex:
		return strconv.FormatInt(id, 16), nil
	case EncodingBase2:
		return sid.Base2(), nil
	case EncodingBase32:
		return sid.Base32(), nil
	case EncodingBase36:
		return sid.Base36(), nil
	case EncodingBase58:
		return sid.Base58(), nil
	case EncodingBase64:
		return sid.Base64(), nil
	default:
		return "", xerrors.WithCode(xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown encoding %q", enc), "unknown_encoding")
	}
}

// Parse 将指定编码的字符串还原为 ID
func Parse(s string, enc Encoding) (int64, error) {
	var (
		sid snowflake.ID
		err error
	)
	switch enc {
	case EncodingDecimal, "":
		sid, err = snowflake.ParseString(s)
	case EncodingHex:
		var v int64
		v, err = strconv.ParseInt(s, 16, 64)
		sid = snowflake.ParseInt64(v)
	case EncodingBase2:
		sid, err = snowflake.ParseBase2(s)
	case EncodingBase32:
		sid, err = snowflake.ParseBase32([]byte(s))
	case EncodingBase36:
		sid, err = snowflake.ParseBase36(s)
	case EncodingBase58:
		sid, err = snowflake.ParseBase58([]byte(s))
	case EncodingBase64:
		sid, err = snowflake.ParseBase64(s)
	default:
		return 0, xerrors.WithCode(xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown encoding %q", enc), "unknown_encoding")
	}
	if err != nil {
		return 0, xerrors.WithCode(xerrors.Wrapf(xerrors.Join(xerrors.ErrInvalidInput, err), "parse %s id %q", enc, s), "invalid_id")
	}
	if sid.Int64() < 0 {
		return 0, xerrors.WithCode(xerrors.Wrapf(xerrors.ErrInvalidInput, "id %q is negative", s), "invalid_id")
	}
	// base32/base58 解码不检查溢出，超出 int64 的输入会回绕成另一个 ID
	if enc == EncodingBase32 || enc == EncodingBase58 {
		if canonical, _ := Format(sid.Int64(), enc); canonical != s {
			return 0, xerrors.WithCode(xerrors.Wrapf(xerrors.ErrInvalidInput, "%s id %q overflows or is not canonical", enc, s), "invalid_id")
		}
	}
	return sid.Int64(), nil
}
