package target_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"org-restore/internal/model"
	"org-restore/internal/target"
)

func newClient(t *testing.T, handler http.Handler) *target.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := target.NewClient(target.Config{BaseURL: srv.URL, Token: "secret"}, nil)
	require.NoError(t, err)
	return client
}

func TestDescribe(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/objects/Account/describe", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "Account",
			"fields": [
				{"name": "Name", "type": "string", "createable": true, "nameField": true},
				{"name": "Industry", "type": "picklist", "createable": true,
				 "picklistValues": [
					{"value": "Technology", "active": true},
					{"value": "Retired", "active": false}
				 ]},
				{"name": "OwnerId", "type": "reference", "createable": true,
				 "referenceTo": ["User"], "relationshipName": "Owner"}
			],
			"recordTypeInfos": [
				{"id": "012A", "name": "Customer", "developerName": "Customer", "defaultRecordTypeMapping": true}
			]
		}`))
	}))

	meta, err := client.Describe(context.Background(), "Account")
	require.NoError(t, err)

	assert.Equal(t, "Account", meta.ObjectName)
	require.Len(t, meta.Fields, 3)

	industry := meta.Field("Industry")
	require.NotNil(t, industry)
	assert.Equal(t, []string{"Technology"}, industry.PicklistValues, "inactive values are filtered")

	owner := meta.Field("OwnerId")
	require.NotNil(t, owner)
	assert.True(t, owner.IsReference())

	require.Len(t, meta.RecordTypes, 1)
	assert.True(t, meta.RecordTypes[0].IsDefault)

	dt := meta.DefaultRecordType()
	require.NotNil(t, dt)
	assert.Equal(t, "012A", dt.ID)
}

func TestActiveUsers(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		w.Write([]byte(`{"users": [{"id": "005A", "username": "a@x.example", "active": true}]}`))
	}))

	users, err := client.ActiveUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "005A", users[0].ID)
}

func TestWriteBatch(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/objects/Account/batch", r.URL.Path)

		var payload struct {
			Records []struct {
				SourceID string            `json:"sourceId"`
				Fields   map[string]string `json:"fields"`
			} `json:"records"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Records, 2)
		// Empty values must be omitted from the payload.
		_, hasEmpty := payload.Records[1].Fields["Phone"]
		assert.False(t, hasEmpty)

		w.Write([]byte(`{"results": [
			{"sourceId": "A1", "id": "T1", "success": true},
			{"sourceId": "A2", "success": false,
			 "errors": [{"statusCode": "REQUIRED_FIELD_MISSING", "message": "Name is required"}]}
		]}`))
	}))

	records := []model.TransformedRecord{
		{SourceID: "A1", Fields: []model.Field{{Name: "Name", Value: "Acme"}}},
		{SourceID: "A2", Fields: []model.Field{{Name: "Phone", Value: ""}}},
	}
	results, err := client.WriteBatch(context.Background(), "Account", model.ModeInsert, "", records)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Success)
	assert.Equal(t, "T1", results[0].TargetID)

	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "missing required field")
}

func TestWriteBatchUpsertRouting(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/objects/Account/batch/External_Key__c", r.URL.Path)
		w.Write([]byte(`{"results": []}`))
	}))

	_, err := client.WriteBatch(context.Background(), "Account", model.ModeUpsert, "External_Key__c", nil)
	require.NoError(t, err)
}

func TestTransportErrorClassification(t *testing.T) {
	codes := map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusServiceUnavailable:  true,
		http.StatusRequestTimeout:      true,
		http.StatusBadRequest:          false,
		http.StatusUnprocessableEntity: false,
	}
	for code, wantTransport := range codes {
		status := code
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := client.Describe(context.Background(), "Account")
		require.Error(t, err)
		assert.Equal(t, wantTransport, model.IsTransport(err), "status %d", code)
	}
}

func TestClassifyWriteError(t *testing.T) {
	assert.Equal(t, "invalid picklist value", target.ClassifyWriteError("INVALID_PICKLIST_VALUE"))
	assert.Equal(t, "duplicate", target.ClassifyWriteError("DUPLICATE_VALUE"))
	assert.Equal(t, "bad reference", target.ClassifyWriteError("INVALID_CROSS_REFERENCE_KEY"))
	assert.Equal(t, "some new code", target.ClassifyWriteError("SOME_NEW_CODE"))
	assert.Equal(t, "error", target.ClassifyWriteError(""))
}
