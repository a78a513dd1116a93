package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/store/memory"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	l := zap.NewNop()
	s := NewServer(":0", memory.New(), l, 50, 100)
	return s, httptest.NewServer(s.httpServer.Handler)
}

func insertBody(kind commitment.AccumulatorKind, seed byte) []byte {
	owner := fmt.Sprintf("0x%064x", seed)
	hash := fmt.Sprintf("0x%064x", seed+1)
	body, _ := json.Marshal(insertRequest{
		Kind:           kind,
		OwnerKey:       owner,
		Amount:         100,
		CommitmentHash: hash,
	})
	return body
}

func TestHandleInsertThenStatus(t *testing.T) {
	_, ts := testServer(t)
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/commitments", "application/json", bytes.NewReader(insertBody(commitment.AccumulatorMMR, 1)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var inserted insertResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&inserted))
	require.Equal(t, uint64(0), inserted.ID)

	statusResp, err := ts.Client().Get(fmt.Sprintf("%s/commitments/%d/status", ts.URL, inserted.ID))
	require.NoError(t, err)
	defer statusResp.Body.Close()
	require.Equal(t, 200, statusResp.StatusCode)

	var status statusResponse
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	require.Equal(t, inserted.ID, status.ID)
	require.False(t, status.Included)
}

func TestHandleInsertRejectsMalformedHash(t *testing.T) {
	_, ts := testServer(t)
	defer ts.Close()

	body, _ := json.Marshal(insertRequest{Kind: commitment.AccumulatorMMR, OwnerKey: fmt.Sprintf("0x%064x", 1), CommitmentHash: "0x00"})
	resp, err := ts.Client().Post(ts.URL+"/commitments", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 400, resp.StatusCode)
}

func TestHandleProofConflictBeforeInclusion(t *testing.T) {
	_, ts := testServer(t)
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/commitments", "application/json", bytes.NewReader(insertBody(commitment.AccumulatorPoseidon, 2)))
	require.NoError(t, err)
	var inserted insertResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&inserted))
	resp.Body.Close()

	proofResp, err := ts.Client().Get(fmt.Sprintf("%s/commitments/%d/proof", ts.URL, inserted.ID))
	require.NoError(t, err)
	defer proofResp.Body.Close()
	require.Equal(t, 409, proofResp.StatusCode)
}

func TestHandleStatusNotFound(t *testing.T) {
	_, ts := testServer(t)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/commitments/999/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 404, resp.StatusCode)
}

func TestHandleInsertRateLimited(t *testing.T) {
	l := zap.NewNop()
	s := NewServer(":0", memory.New(), l, 1, 1)
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	first, err := ts.Client().Post(ts.URL+"/commitments", "application/json", bytes.NewReader(insertBody(commitment.AccumulatorMMR, 3)))
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, 201, first.StatusCode)

	second, err := ts.Client().Post(ts.URL+"/commitments", "application/json", bytes.NewReader(insertBody(commitment.AccumulatorMMR, 4)))
	require.NoError(t, err)
	defer second.Body.Close()
	require.Equal(t, 429, second.StatusCode)
}
