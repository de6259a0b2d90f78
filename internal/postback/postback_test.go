package postback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-order-intake/internal/models"
)

func TestEncodeDecode(t *testing.T) {
	data := Encode(ActionColorSelect, "U123", "赤系-red")
	assert.Contains(t, data, "action=colorSelect&userId=U123&colorVal=")

	d, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Data{Action: ActionColorSelect, UserID: "U123", Value: "赤系-red"}, d)
}

func TestEncodeSelectDateHasNoValue(t *testing.T) {
	assert.Equal(t, "action=selectDate&userId=U123", Encode(ActionSelectDate, "U123", "ignored"))
}

func TestDecodeLegacyUnescapedData(t *testing.T) {
	d, err := Decode("action=colorSelect&colorVal=黄色・オレンジ系-yellow-orange&userId=Uabc")
	require.NoError(t, err)
	assert.Equal(t, ActionColorSelect, d.Action)
	assert.Equal(t, "Uabc", d.UserID)
	assert.Equal(t, "黄色・オレンジ系-yellow-orange", d.Value)
}

func TestDecodeUnknownAction(t *testing.T) {
	for _, data := range []string{"action=selectdate&userId=U1", "userId=U1", "action=itemSelectX"} {
		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrUnknownAction, data)
	}
}

func TestResolveOption(t *testing.T) {
	catalog := []models.Option{
		{Label: "赤系", Tag: "red"},
		{Label: "黄色・オレンジ系", Tag: "yellow-orange"},
	}

	o, ok := ResolveOption(catalog, "yellow-orange")
	require.True(t, ok)
	assert.Equal(t, "黄色・オレンジ系", o.Label)

	o, ok = ResolveOption(catalog, "赤系-red")
	require.True(t, ok)
	assert.Equal(t, "red", o.Tag)

	_, ok = ResolveOption(catalog, "blue")
	assert.False(t, ok)
	_, ok = ResolveOption(catalog, "")
	assert.False(t, ok)
}
