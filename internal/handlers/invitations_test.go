package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-service/internal/models"
)

func TestInvitationAcceptFlow(t *testing.T) {
	api := newTestAPI(t)
	conv := api.createConversation(t, "A", "B")
	invitePath := "/conversations/" + conv.ID + "/invitations"

	rec := api.do(t, http.MethodPost, invitePath, "A", gin.H{"user_id": "C"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[models.Invitation](t, rec)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Equal(t, "A", inv.InvitedBy)

	assert.Equal(t, http.StatusConflict, api.do(t, http.MethodPost, invitePath, "B", gin.H{"user_id": "C"}).Code)

	rec = api.do(t, http.MethodGet, "/invitations/pending", "C", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[map[string][]models.PendingInvitation](t, rec)["invitations"]
	require.Len(t, pending, 1)
	assert.Equal(t, conv.ID, pending[0].Conversation.ID)
	assert.Equal(t, 1, pending[0].RecentMessageCount)

	rec = api.do(t, http.MethodPost, invitePath+"/respond", "C", gin.H{"accept": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.InvitationAccepted, decode[models.Invitation](t, rec).Status)

	rec = api.do(t, http.MethodGet, "/conversations/"+conv.ID, "C", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, decode[models.Conversation](t, rec).ParticipantIDs)

	assert.Equal(t, http.StatusConflict, api.do(t, http.MethodPost, invitePath+"/respond", "C", gin.H{"accept": true}).Code)
	assert.Empty(t, decode[map[string][]models.PendingInvitation](t, api.do(t, http.MethodGet, "/invitations/pending", "C", nil))["invitations"])
}

func TestInvitationReject(t *testing.T) {
	api := newTestAPI(t)
	conv := api.createConversation(t, "A", "B")
	invitePath := "/conversations/" + conv.ID + "/invitations"
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, invitePath, "A", gin.H{"user_id": "C"}).Code)

	rec := api.do(t, http.MethodPost, invitePath+"/respond", "C", gin.H{"accept": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.InvitationRejected, decode[models.Invitation](t, rec).Status)

	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodGet, "/conversations/"+conv.ID, "C", nil).Code)
}

func TestInvitationErrors(t *testing.T) {
	api := newTestAPI(t)
	conv := api.createConversation(t, "A", "B")
	invitePath := "/conversations/" + conv.ID + "/invitations"

	assert.Equal(t, http.StatusConflict, api.do(t, http.MethodPost, invitePath, "A", gin.H{"user_id": "B"}).Code)
	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodPost, invitePath, "D", gin.H{"user_id": "C"}).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPost, "/conversations/missing/invitations", "A", gin.H{"user_id": "C"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, invitePath, "A", `{}`).Code)

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, invitePath+"/respond", "C", `{}`).Code)
	assert.Equal(t, http.StatusConflict, api.do(t, http.MethodPost, invitePath+"/respond", "C", gin.H{"accept": true}).Code)
}
