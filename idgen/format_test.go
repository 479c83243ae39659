package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/idforge/xerrors"
)

func TestFormat_KnownValues(t *testing.T) {
	cases := map[Encoding]string{
		EncodingDecimal: "31",
		EncodingHex:     "1f",
		EncodingBase2:   "11111",
		EncodingBase32:  "9",
		EncodingBase36:  "v",
		EncodingBase58:  "x",
		EncodingBase64:  "MzE=",
	}
	for enc, want := range cases {
		got, err := Format(31, enc)
		require.NoError(t, err, enc)
		assert.Equal(t, want, got, enc)
	}

	// 多位数，锁定字母表
	got, err := Format(1000, EncodingBase32)
	require.NoError(t, err)
	assert.Equal(t, "9e", got)
	got, err = Format(1000, EncodingBase58)
	require.NoError(t, err)
	assert.Equal(t, "if", got)
}

func TestFormatParse_RoundTrip(t *testing.T) {
	sf, err := NewSnowflake(77)
	require.NoError(t, err)
	id, err := sf.NextID()
	require.NoError(t, err)

	for _, enc := range Encodings() {
		for _, v := range []int64{0, 1, id, 1<<63 - 1} {
			s, err := Format(v, enc)
			require.NoError(t, err, "%s %d", enc, v)
			got, err := Parse(s, enc)
			require.NoError(t, err, "%s %q", enc, s)
			assert.Equal(t, v, got, "%s 编码往返结果不一致", enc)
		}
	}
}

func TestFormatParse_Invalid(t *testing.T) {
	_, err := Format(-1, EncodingDecimal)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = Format(1, Encoding("base99"))
	assert.Equal(t, "unknown_encoding", xerrors.GetCode(err))

	_, err = Parse("not-a-number", EncodingDecimal)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Equal(t, "invalid_id", xerrors.GetCode(err))

	_, err = Parse("0O0", EncodingBase58)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = Parse("-5", EncodingDecimal)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = Parse("zz", EncodingHex)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestParse_RejectsOverflow(t *testing.T) {
	cases := []struct {
		s   string
		enc Encoding
	}{
		{"M1111111111", EncodingBase58},
		{"Z1111111111", EncodingBase58},
		{"ZZZZZZZZZZZZ", EncodingBase58},
		{"99999999999999", EncodingBase32},
		{"h999999999999", EncodingBase32},
	}
	for _, tc := range cases {
		id, err := Parse(tc.s, tc.enc)
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput, "%s %q 超出 int64 应被拒绝，实际得到 %d", tc.enc, tc.s, id)
		assert.Equal(t, "invalid_id", xerrors.GetCode(err), "%s %q", tc.enc, tc.s)
	}

	// 前导零不是规范编码
	_, err := Parse("11", EncodingBase58)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	// 最大 ID 仍然可以解析
	maxID := int64(1<<63 - 1)
	for _, enc := range []Encoding{EncodingBase32, EncodingBase58} {
		s, err := Format(maxID, enc)
		require.NoError(t, err)
		got, err := Parse(s, enc)
		require.NoError(t, err, enc)
		assert.Equal(t, maxID, got)
	}
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, EncodingDecimal, enc)

	enc, err = ParseEncoding(" Base58 ")
	require.NoError(t, err)
	assert.Equal(t, EncodingBase58, enc)

	_, err = ParseEncoding("rot13")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Equal(t, "unknown_encoding", xerrors.GetCode(err))
}
