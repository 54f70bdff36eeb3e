package grammar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokyo = time.FixedZone("JST", 9*60*60)

// Wednesday 2026-10-14 09:15 JST.
var ref = time.Date(2026, time.October, 14, 9, 15, 0, 0, tokyo)

func parse(t *testing.T, text string) []Match {
	t.Helper()
	got, err := NewJapanese().Parse(text, Options{Reference: ref, Location: tokyo})
	require.NoError(t, err)
	return got
}

func TestJapanese_DateAndTimeMerged(t *testing.T) {
	got := parse(t, "明日 10時 ミーティング")
	require.Len(t, got, 1)
	assert.Equal(t, "明日 10時", got[0].Text)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, time.Date(2026, time.October, 15, 10, 0, 0, 0, tokyo), got[0].Start)
	assert.Nil(t, got[0].End)
}

func TestJapanese_Expressions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		at   time.Time
	}{
		{"month day", "4月3日に集合", "4月3日", time.Date(2026, 4, 3, 12, 0, 0, 0, tokyo)},
		{"full date", "2027年1月2日", "2027年1月2日", time.Date(2027, 1, 2, 12, 0, 0, 0, tokyo)},
		{"day only", "20日締切", "20日", time.Date(2026, 10, 20, 12, 0, 0, 0, tokyo)},
		{"slash", "会議は5/3にやります", "5/3", time.Date(2026, 5, 3, 12, 0, 0, 0, tokyo)},
		{"iso", "2026-12-24 パーティ", "2026-12-24", time.Date(2026, 12, 24, 12, 0, 0, 0, tokyo)},
		{"afternoon", "午後3時半", "午後3時半", time.Date(2026, 10, 14, 15, 30, 0, 0, tokyo)},
		{"clock", "18:45 夕食", "18:45", time.Date(2026, 10, 14, 18, 45, 0, 0, tokyo)},
		{"weekend", "今週末", "今週末", time.Date(2026, 10, 17, 12, 0, 0, 0, tokyo)},
		{"next week friday", "来週金曜日の19時", "来週金曜日の19時", time.Date(2026, 10, 23, 19, 0, 0, 0, tokyo)},
		{"this week monday", "今週の月曜", "今週の月曜", time.Date(2026, 10, 12, 12, 0, 0, 0, tokyo)},
		{"kana", "あさって", "あさって", time.Date(2026, 10, 16, 12, 0, 0, 0, tokyo)},
		{"date with minutes", "5日10時5分", "5日10時5分", time.Date(2026, 10, 5, 10, 5, 0, 0, tokyo)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parse(t, tt.text)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Text)
			assert.Equal(t, tt.at, got[0].Start)
		})
	}
}

func TestJapanese_NoMatch(t *testing.T) {
	for _, text := range []string{"", "15, 16 遠足", "2024年の旅行", "123時", "2月30日", "25時", "買い物リスト"} {
		assert.Empty(t, parse(t, text), text)
	}
}

func TestJapanese_DocumentOrder(t *testing.T) {
	got := parse(t, "9時 朝会、明日 打ち合わせ、5/3 旅行")
	require.Len(t, got, 3)
	assert.Equal(t, "9時", got[0].Text)
	assert.Equal(t, "明日", got[1].Text)
	assert.Equal(t, "5/3", got[2].Text)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Index, got[i-1].Index+len(got[i-1].Text))
	}
}

func TestJapanese_InvalidUTF8(t *testing.T) {
	_, err := NewJapanese().Parse("明日\xff", Options{Reference: ref})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	g, err := New("ja-JP")
	require.NoError(t, err)
	assert.NotNil(t, g)

	_, err = New("fr")
	assert.ErrorIs(t, err, ErrUnsupportedLocale)
}
