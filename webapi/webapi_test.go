package webapi_test

import (
	"net/http"
	"testing"

	"github.com/amirasaad/bankcards/webapi/testutils"
	"github.com/stretchr/testify/suite"
)

type WebapiTestSuite struct {
	testutils.E2ETestSuite
}

func (s *WebapiTestSuite) TestSwaggerDocument() {
	resp := s.MakeRequest(http.MethodGet, "/swagger/doc.json", "", "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusOK, resp.StatusCode)
}

func TestWebapiTestSuite(t *testing.T) {
	suite.Run(t, new(WebapiTestSuite))
}
