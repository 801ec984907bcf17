package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	"github.com/taskhall/engine/internal/testutil"
	appErr "github.com/taskhall/engine/pkg/errors"
)

func newProfiles(t *testing.T) (ProfileService, func(string) uuid.UUID) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewProfileService(repository.NewProfileRepository(db))
	mkUser := func(name string) uuid.UUID { return testutil.CreateUser(t, db, name, 0).ID }
	return svc, mkUser
}

func decodePatch(t *testing.T, body string) ProfilePatch {
	t.Helper()
	var p ProfilePatch
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return p
}

func TestProfileGetEmpty(t *testing.T) {
	svc, mkUser := newProfiles(t)
	id := mkUser("amy")

	p, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, p.UserID)
	assert.Zero(t, p.Completion)
	assert.NotNil(t, p.Skills)
}

func TestProfilePatchAndReplace(t *testing.T) {
	ctx := context.Background()
	svc, mkUser := newProfiles(t)
	id := mkUser("amy")

	p, err := svc.Update(ctx, id, decodePatch(t, `{"college":"Engineering","mbti":"intj","age":20,"skills":["go"," ","sql"]}`))
	require.NoError(t, err)
	assert.Equal(t, "INTJ", *p.MBTI)
	assert.Equal(t, []string{"go", "sql"}, []string(p.Skills))
	assert.Equal(t, 4*100/12, p.Completion)

	// PATCH leaves absent fields alone and clears explicit nulls.
	p, err = svc.Update(ctx, id, decodePatch(t, `{"major":"Physics","age":null}`))
	require.NoError(t, err)
	assert.Equal(t, "Engineering", *p.College)
	assert.Equal(t, "Physics", *p.Major)
	assert.Nil(t, p.Age)

	// PUT replaces everything.
	p, err = svc.Replace(ctx, id, decodePatch(t, `{"gender":"Female"}`))
	require.NoError(t, err)
	assert.Equal(t, "female", *p.Gender)
	assert.Nil(t, p.College)
	assert.Empty(t, p.Skills)
	assert.Equal(t, 1*100/12, p.Completion)

	stored, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, p.Completion, stored.Completion)
	assert.Nil(t, stored.Major)
}

func TestProfileValidation(t *testing.T) {
	ctx := context.Background()
	svc, mkUser := newProfiles(t)
	id := mkUser("amy")

	tooMany := make([]string, 21)
	for i := range tooMany {
		tooMany[i] = "x"
	}
	raw, _ := json.Marshal(map[string]any{
		"gender":         "robot",
		"age":            121,
		"grade":          strings.Repeat("g", 11),
		"mbti":           "ABCD",
		"current_status": strings.Repeat("s", 101),
		"interests":      tooMany,
		"skills":         []string{strings.Repeat("k", 21)},
	})

	_, err := svc.Update(ctx, id, decodePatch(t, string(raw)))
	require.Error(t, err)
	ae, ok := appErr.As(err)
	require.True(t, ok)
	assert.Equal(t, appErr.CodeInvalid, ae.Code)

	fields := ae.Meta["fields"].(map[string]string)
	for _, f := range []string{"gender", "age", "grade", "mbti", "current_status", "interests", "skills[0]"} {
		assert.Contains(t, fields, f)
	}

	// Nothing was stored.
	p, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, p.Completion)

	_, err = svc.Update(ctx, id, decodePatch(t, `{"gender":"保密","grade":"大三"}`))
	assert.NoError(t, err)
}

func TestProfileSearch(t *testing.T) {
	ctx := context.Background()
	svc, mkUser := newProfiles(t)

	type seed struct {
		name  string
		patch string
	}
	ids := map[string]uuid.UUID{}
	for _, s := range []seed{
		{"full", `{"college":"School of Engineering","major":"Computer Science","mbti":"INTJ","age":21,"grade":"junior","gender":"male"}`},
		{"half", `{"college":"engineering","major":"Computer Science","mbti":"INTJ"}`},
		{"twin", `{"college":"ENGINEERING","major":"Computer Science","mbti":"INTJ"}`},
		{"arts", `{"college":"Arts","major":"History","mbti":"ENFP"}`},
		{"me", `{"college":"Engineering","major":"Computer Science","mbti":"INTJ","age":30}`},
	} {
		id := mkUser(s.name)
		ids[s.name] = id
		_, err := svc.Update(ctx, id, decodePatch(t, s.patch))
		require.NoError(t, err)
	}

	criteria := MatchCriteria{College: "engineer", Major: "computer", MBTI: "intj", ExcludeUserID: ids["me"]}
	got, err := Collect(svc.Search(ctx, criteria), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ids["full"], got[0].UserID)

	// Equal completion breaks ties by ascending id.
	tied := []uuid.UUID{got[1].UserID, got[2].UserID}
	assert.ElementsMatch(t, []uuid.UUID{ids["half"], ids["twin"]}, tied)
	assert.Less(t, got[1].UserID.String(), got[2].UserID.String())

	again, err := Collect(svc.Search(ctx, criteria), 10)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	got, err = Collect(svc.Search(ctx, MatchCriteria{MinCompletion: 40}), 10)
	require.NoError(t, err)
	for _, p := range got {
		assert.GreaterOrEqual(t, p.Completion, 40)
	}

	got, err = Collect(svc.Search(ctx, MatchCriteria{}), 10)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = Collect(svc.Search(ctx, MatchCriteria{College: "100%"}), 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Collect(svc.Search(ctx, MatchCriteria{MinCompletion: 101}), 10)
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

func TestProfileSearchSpansBatches(t *testing.T) {
	ctx := context.Background()
	svc, mkUser := newProfiles(t)
	for i := 0; i < profileBatchSize+7; i++ {
		_, err := svc.Update(ctx, mkUser("u"), decodePatch(t, `{"mbti":"ISTP"}`))
		require.NoError(t, err)
	}

	var seen []models.Profile
	for p, err := range svc.Search(ctx, MatchCriteria{MBTI: "ISTP"}) {
		require.NoError(t, err)
		seen = append(seen, p)
	}
	require.Len(t, seen, profileBatchSize+7)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1].UserID.String(), seen[i].UserID.String())
	}
}

func TestOptionalDistinguishesNull(t *testing.T) {
	var body struct {
		A Optional[string] `json:"a"`
		B Optional[string] `json:"b"`
		C Optional[string] `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":null}`), &body))
	assert.True(t, body.A.Set)
	assert.Equal(t, "x", *body.A.Value)
	assert.True(t, body.B.Set)
	assert.Nil(t, body.B.Value)
	assert.False(t, body.C.Set)

	out, err := json.Marshal(Some(3))
	require.NoError(t, err)
	assert.Equal(t, "3", string(out))
	out, err = json.Marshal(Null[int]())
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
