package envelope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "conductor/pkg/domain-errors"
)

const testMaxPayload = 1024

type EnvelopeSuite struct {
	suite.Suite
}

func TestEnvelopeSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeSuite))
}

func (s *EnvelopeSuite) TestParse() {
	s.Run("valid body", func() {
		env, err := Parse([]byte(`{"intent":"echo","payload":{"msg":"hi"},"source":"cli"}`), testMaxPayload)
		s.Require().NoError(err)
		s.Equal("echo", env.Intent)
		s.Equal("hi", env.Payload["msg"])
		s.Equal("cli", env.Source)
		s.NotEmpty(env.ID)
		s.NotEmpty(env.CorrelationID)
		s.False(env.ReceivedAt.IsZero())
		s.Empty(env.SubjectID)
	})

	s.Run("malformed JSON", func() {
		_, err := Parse([]byte(`{not json`), testMaxPayload)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "body")
	})

	s.Run("missing intent", func() {
		_, err := Parse([]byte(`{"payload":{"a":1}}`), testMaxPayload)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "intent: required")
	})

	s.Run("invalid intent format", func() {
		for _, intent := range []string{"Echo", "a..b", ".echo", "echo.", "e cho", "intent!"} {
			_, err := Parse([]byte(`{"intent":"`+intent+`","payload":{"a":1}}`), testMaxPayload)
			s.Require().Error(err, intent)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), intent)
		}
	})

	s.Run("dotted intents accepted", func() {
		for _, intent := range []string{"echo", "summarize.doc", "a.b.c", "storage_v2.put-object"} {
			env, err := Parse([]byte(`{"intent":"`+intent+`","payload":{"a":1}}`), testMaxPayload)
			s.Require().NoError(err, intent)
			s.Equal(intent, env.Intent)
		}
	})

	s.Run("missing payload", func() {
		_, err := Parse([]byte(`{"intent":"echo"}`), testMaxPayload)
		s.Require().Error(err)
		s.Contains(err.Error(), "payload: required")
	})

	s.Run("payload must be an object", func() {
		_, err := Parse([]byte(`{"intent":"echo","payload":[1,2]}`), testMaxPayload)
		s.Require().Error(err)
		s.Contains(err.Error(), "payload: must be an object")
	})

	s.Run("payload over size limit", func() {
		big := strings.Repeat("x", testMaxPayload)
		_, err := Parse([]byte(`{"intent":"echo","payload":{"blob":"`+big+`"}}`), testMaxPayload)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "payload: exceeds")
	})

	s.Run("distinct requests get distinct correlation ids", func() {
		first, err := Parse([]byte(`{"intent":"echo","payload":{"a":1}}`), testMaxPayload)
		s.Require().NoError(err)
		second, err := Parse([]byte(`{"intent":"echo","payload":{"a":1}}`), testMaxPayload)
		s.Require().NoError(err)
		s.NotEqual(first.CorrelationID, second.CorrelationID)
	})
}

func (s *EnvelopeSuite) TestSanitization() {
	s.Run("intent is trimmed and cleaned", func() {
		env, err := Parse([]byte(`{"intent":"  echo\u0000  ","payload":{"a":1}}`), testMaxPayload)
		s.Require().NoError(err)
		s.Equal("echo", env.Intent)
	})

	s.Run("angle brackets stripped from payload strings", func() {
		env, err := Parse([]byte(`{"intent":"echo","payload":{"msg":"<script>alert(1)</script>"}}`), testMaxPayload)
		s.Require().NoError(err)
		s.Equal("scriptalert(1)/script", env.Payload["msg"])
	})

	s.Run("nested values sanitized", func() {
		body := `{"intent":"echo","payload":{"outer":{"inner":"<b>x</b>"},"list":["<i>","ok"]}}`
		env, err := Parse([]byte(body), testMaxPayload)
		s.Require().NoError(err)
		outer := env.Payload["outer"].(map[string]any)
		s.Equal("bx/b", outer["inner"])
		list := env.Payload["list"].([]any)
		s.Equal("i", list[0])
		s.Equal("ok", list[1])
	})

	s.Run("non-string values untouched", func() {
		env, err := Parse([]byte(`{"intent":"echo","payload":{"n":42,"b":true}}`), testMaxPayload)
		s.Require().NoError(err)
		s.Equal(float64(42), env.Payload["n"])
		s.Equal(true, env.Payload["b"])
	})
}
