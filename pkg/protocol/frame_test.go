package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		f, err := ParseFrame([]byte(
			`{"src":"c1","dest":"n1","body":{"type":"broadcast","msg_id":4,"message":42}}`,
		))
		require.NoError(t, err)

		assert.Equal(t, "c1", f.Src)
		assert.Equal(t, "n1", f.Dest)
		assert.Equal(t, TypeBroadcast, f.Type())
		assert.Equal(t, uint64(4), f.MsgID())
		assert.False(t, f.IsReply())

		body, err := DecodeBody[BroadcastBody](f)
		require.NoError(t, err)
		require.NotNil(t, body.Message)
		assert.Equal(t, uint64(42), *body.Message)
		assert.Equal(t, uint64(4), body.MsgID)
	})

	t.Run("reply", func(t *testing.T) {
		f, err := ParseFrame([]byte(
			`{"src":"n2","dest":"n1","body":{"type":"gossip_ok","in_reply_to":7,"gossip_data":[1,2],"org_msg_id":3,"org_msg_src":"n1"}}`,
		))
		require.NoError(t, err)
		assert.True(t, f.IsReply())

		body, err := DecodeBody[GossipBody](f)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2}, body.GossipData)
		assert.Equal(t, uint64(3), body.OrgMsgID)
		assert.Equal(t, "n1", body.OrgMsgSrc)
	})

	t.Run("unknown fields ignored", func(t *testing.T) {
		f, err := ParseFrame([]byte(
			`{"id":5,"src":"c1","dest":"n1","body":{"type":"read","msg_id":1,"extra":{"a":1}}}`,
		))
		require.NoError(t, err)
		assert.Equal(t, TypeRead, f.Type())
	})

	t.Run("missing field decodes as nil", func(t *testing.T) {
		f, err := ParseFrame([]byte(
			`{"src":"c1","dest":"n1","body":{"type":"add","msg_id":1}}`,
		))
		require.NoError(t, err)

		body, err := DecodeBody[AddBody](f)
		require.NoError(t, err)
		assert.Nil(t, body.Delta)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseFrame([]byte(`{"src":"c1",`))
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := ParseFrame([]byte(`{"src":"c1","dest":"n1","body":{"msg_id":1}}`))
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("missing src", func(t *testing.T) {
		_, err := ParseFrame([]byte(`{"dest":"n1","body":{"type":"read"}}`))
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseFrame([]byte("  "))
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("wrong body field type", func(t *testing.T) {
		f, err := ParseFrame([]byte(
			`{"src":"c1","dest":"n1","body":{"type":"broadcast","message":"abc"}}`,
		))
		require.NoError(t, err)

		_, err = DecodeBody[BroadcastBody](f)
		assert.ErrorIs(t, err, ErrProtocol)
	})
}
