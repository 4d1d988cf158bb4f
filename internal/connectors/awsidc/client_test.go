package awsidc

import (
	"context"
	"errors"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	idstypes "github.com/aws/aws-sdk-go-v2/service/identitystore/types"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	ssotypes "github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stackspend/stackspend/internal/connectors"
	"github.com/stackspend/stackspend/internal/spend"
)

var fastRetry = connectors.RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

// statusError mimics the SDK's response errors, which expose the HTTP status.
type statusError struct{ code int }

func (e statusError) Error() string       { return "api error" }
func (e statusError) HTTPStatusCode() int { return e.code }

// fakeDirectory serves users one page per call, keyed by the incoming token. userErrs fail
// the first calls in order.
type fakeDirectory struct {
	userPages [][]idstypes.User
	groups    map[string][]string
	userErrs  []error
	userCalls int
}

func (f *fakeDirectory) ListUsers(_ context.Context, in *identitystore.ListUsersInput, _ ...func(*identitystore.Options)) (*identitystore.ListUsersOutput, error) {
	f.userCalls++
	if f.userCalls <= len(f.userErrs) {
		return nil, f.userErrs[f.userCalls-1]
	}
	idx := 0
	if in.NextToken != nil {
		idx = int(aws.ToString(in.NextToken)[0] - '0')
	}
	out := &identitystore.ListUsersOutput{}
	if idx < len(f.userPages) {
		out.Users = f.userPages[idx]
	}
	if idx+1 < len(f.userPages) {
		out.NextToken = aws.String(string(rune('0' + idx + 1)))
	}
	return out, nil
}

func (f *fakeDirectory) ListGroupMemberships(_ context.Context, in *identitystore.ListGroupMembershipsInput, _ ...func(*identitystore.Options)) (*identitystore.ListGroupMembershipsOutput, error) {
	out := &identitystore.ListGroupMembershipsOutput{}
	for _, id := range f.groups[aws.ToString(in.GroupId)] {
		out.GroupMemberships = append(out.GroupMemberships, idstypes.GroupMembership{
			GroupId:  in.GroupId,
			MemberId: &idstypes.MemberIdMemberUserId{Value: id},
		})
	}
	return out, nil
}

type fakeAdmin struct {
	instances   []ssotypes.InstanceMetadata
	sets        map[string]string
	accounts    map[string][]string
	assignments map[string][]ssotypes.AccountAssignment
	setsErr     error
}

func (f *fakeAdmin) ListInstances(context.Context, *ssoadmin.ListInstancesInput, ...func(*ssoadmin.Options)) (*ssoadmin.ListInstancesOutput, error) {
	return &ssoadmin.ListInstancesOutput{Instances: f.instances}, nil
}

func (f *fakeAdmin) ListPermissionSets(context.Context, *ssoadmin.ListPermissionSetsInput, ...func(*ssoadmin.Options)) (*ssoadmin.ListPermissionSetsOutput, error) {
	if f.setsErr != nil {
		return nil, f.setsErr
	}
	return &ssoadmin.ListPermissionSetsOutput{PermissionSets: slices.Sorted(maps.Keys(f.sets))}, nil
}

func (f *fakeAdmin) DescribePermissionSet(_ context.Context, in *ssoadmin.DescribePermissionSetInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.DescribePermissionSetOutput, error) {
	return &ssoadmin.DescribePermissionSetOutput{
		PermissionSet: &ssotypes.PermissionSet{Name: aws.String(f.sets[aws.ToString(in.PermissionSetArn)])},
	}, nil
}

func (f *fakeAdmin) ListAccountsForProvisionedPermissionSet(_ context.Context, in *ssoadmin.ListAccountsForProvisionedPermissionSetInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.ListAccountsForProvisionedPermissionSetOutput, error) {
	return &ssoadmin.ListAccountsForProvisionedPermissionSetOutput{AccountIds: f.accounts[aws.ToString(in.PermissionSetArn)]}, nil
}

func (f *fakeAdmin) ListAccountAssignments(_ context.Context, in *ssoadmin.ListAccountAssignmentsInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.ListAccountAssignmentsOutput, error) {
	key := aws.ToString(in.AccountId) + "/" + aws.ToString(in.PermissionSetArn)
	return &ssoadmin.ListAccountAssignmentsOutput{AccountAssignments: f.assignments[key]}, nil
}

func user(id, name, display string, emails ...string) idstypes.User {
	u := idstypes.User{UserId: aws.String(id), UserName: aws.String(name), DisplayName: aws.String(display)}
	for _, e := range emails {
		u.Emails = append(u.Emails, idstypes.Email{Value: aws.String(e)})
	}
	return u
}

func assign(kind ssotypes.PrincipalType, id string) ssotypes.AccountAssignment {
	return ssotypes.AccountAssignment{PrincipalId: aws.String(id), PrincipalType: kind}
}

func newTestClient(t *testing.T, admin *fakeAdmin, dir *fakeDirectory) *Client {
	t.Helper()
	c, err := NewWithClients(Options{
		Region:          "us-east-1",
		InstanceArn:     "arn:aws:sso:::instance/ssoins-1",
		IdentityStoreID: "d-123",
		Retry:           fastRetry,
	}, admin, dir)
	if err != nil {
		t.Fatalf("NewWithClients: %v", err)
	}
	return c
}

func TestListUsersFollowsPages(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{userPages: [][]idstypes.User{
		{user("u1", "user1", "", " ", "user1@example.com")},
		{user("u2", "user2", "User Two")},
		{user("u3", "", "")},
	}}
	c := newTestClient(t, &fakeAdmin{}, dir)

	got, err := c.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	want := []User{
		{ID: "u1", Email: "user1@example.com", DisplayName: "user1"},
		{ID: "u2", DisplayName: "User Two"},
		{ID: "u3", DisplayName: "u3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}
	if dir.userCalls != 3 {
		t.Fatalf("ListUsers calls = %d, want 3", dir.userCalls)
	}
}

func TestListUsersRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{name: "transport error then ok", errs: []error{errors.New("connection reset")}, wantCalls: 2},
		{name: "503 then ok", errs: []error{statusError{code: 503}}, wantCalls: 2},
		{name: "403 is final", errs: []error{statusError{code: 403}}, wantCalls: 1, wantErr: true},
		{name: "gives up after max tries", errs: []error{statusError{code: 500}, statusError{code: 500}, statusError{code: 500}}, wantCalls: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := &fakeDirectory{
				userPages: [][]idstypes.User{{user("u1", "user1", "User One")}},
				userErrs:  tt.errs,
			}
			got, err := newTestClient(t, &fakeAdmin{}, dir).ListUsers(t.Context())
			if dir.userCalls != tt.wantCalls {
				t.Fatalf("ListUsers calls = %d, want %d", dir.userCalls, tt.wantCalls)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ListUsers() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ListUsers: %v", err)
			}
			if diff := cmp.Diff([]User{{ID: "u1", DisplayName: "User One"}}, got); diff != "" {
				t.Fatalf("users mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListGrantsExpandsGroups(t *testing.T) {
	t.Parallel()

	admin := &fakeAdmin{
		sets:     map[string]string{"ps-1": "Admin", "ps-2": "ReadOnly"},
		accounts: map[string][]string{"ps-1": {"111111111111"}, "ps-2": {"222222222222"}},
		assignments: map[string][]ssotypes.AccountAssignment{
			"111111111111/ps-1": {assign(ssotypes.PrincipalTypeUser, "u1"), assign(ssotypes.PrincipalTypeGroup, "g1")},
			"222222222222/ps-2": {assign(ssotypes.PrincipalTypeGroup, "g1"), assign(ssotypes.PrincipalTypeUser, " ")},
		},
	}
	dir := &fakeDirectory{groups: map[string][]string{"g1": {"u1", "u2"}}}

	got, err := newTestClient(t, admin, dir).ListGrants(context.Background())
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	want := []Grant{
		{UserID: "u1", AccountID: "111111111111", PermissionSet: "Admin"},
		{UserID: "u1", AccountID: "111111111111", PermissionSet: "Admin", GroupID: "g1"},
		{UserID: "u2", AccountID: "111111111111", PermissionSet: "Admin", GroupID: "g1"},
		{UserID: "u1", AccountID: "222222222222", PermissionSet: "ReadOnly", GroupID: "g1"},
		{UserID: "u2", AccountID: "222222222222", PermissionSet: "ReadOnly", GroupID: "g1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("grants mismatch (-want +got):\n%s", diff)
	}
}

func TestListGrantsWrapsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("throttled")
	_, err := newTestClient(t, &fakeAdmin{setsErr: boom}, &fakeDirectory{}).ListGrants(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("ListGrants error = %v, want wrapped %v", err, boom)
	}
}

func TestLoadConfigRejectsPartialKeys(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(context.Background(), "us-east-1", "AKIDEXAMPLE", "", ""); err == nil {
		t.Fatal("expected error for access key without secret")
	}
	cfg, err := LoadConfig(context.Background(), "eu-west-1", "AKIDEXAMPLE", "secret", "")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" || cfg.Region != "eu-west-1" {
		t.Fatalf("unexpected config region=%q key=%q", cfg.Region, creds.AccessKeyID)
	}
}

func TestPickInstance(t *testing.T) {
	t.Parallel()

	one := ssotypes.InstanceMetadata{InstanceArn: aws.String("arn:1"), IdentityStoreId: aws.String("d-111")}
	two := ssotypes.InstanceMetadata{InstanceArn: aws.String("arn:2"), IdentityStoreId: aws.String("d-222")}

	tests := []struct {
		name      string
		instances []ssotypes.InstanceMetadata
		arn       string
		store     string
		wantArn   string
		wantStore string
		wantErr   bool
	}{
		{name: "none", wantErr: true},
		{name: "single", instances: []ssotypes.InstanceMetadata{one}, wantArn: "arn:1", wantStore: "d-111"},
		{name: "by store", instances: []ssotypes.InstanceMetadata{one, two}, store: "d-222", wantArn: "arn:2", wantStore: "d-222"},
		{name: "by arn", instances: []ssotypes.InstanceMetadata{one, two}, arn: "arn:1", wantArn: "arn:1", wantStore: "d-111"},
		{name: "unknown arn", instances: []ssotypes.InstanceMetadata{one}, arn: "arn:9", wantErr: true},
		{name: "ambiguous", instances: []ssotypes.InstanceMetadata{one, two}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			arn, store, err := pickInstance(tt.instances, tt.arn, tt.store)
			if (err != nil) != tt.wantErr {
				t.Fatalf("pickInstance error = %v, wantErr %v", err, tt.wantErr)
			}
			if arn != tt.wantArn || store != tt.wantStore {
				t.Fatalf("pickInstance = (%q, %q), want (%q, %q)", arn, store, tt.wantArn, tt.wantStore)
			}
		})
	}
}

func TestResolveLooksUpMissingStore(t *testing.T) {
	t.Parallel()

	admin := &fakeAdmin{instances: []ssotypes.InstanceMetadata{
		{InstanceArn: aws.String("arn:aws:sso:::instance/ssoins-1"), IdentityStoreId: aws.String("d-111")},
	}}
	c, err := NewWithClients(Options{Region: "us-east-1"}, admin, &fakeDirectory{})
	if err != nil {
		t.Fatalf("NewWithClients: %v", err)
	}
	if _, err := c.ListUsers(context.Background()); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if c.storeID != "d-111" || c.instanceArn != "arn:aws:sso:::instance/ssoins-1" {
		t.Fatalf("resolved (%q, %q)", c.instanceArn, c.storeID)
	}
}

func TestSourceCollectsEntitledUsers(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		userPages: [][]idstypes.User{{
			user("u1", "ana", "", "Ana@Acme.example"),
			user("u2", "bo", "", "bo@acme.example"),
			user("u3", "nomail", ""),
		}},
		groups: map[string][]string{"g1": {"u3"}},
	}
	admin := &fakeAdmin{
		sets:     map[string]string{"ps-1": "AdministratorAccess"},
		accounts: map[string][]string{"ps-1": {"111111111111"}},
		assignments: map[string][]ssotypes.AccountAssignment{
			"111111111111/ps-1": {assign(ssotypes.PrincipalTypeUser, "u1"), assign(ssotypes.PrincipalTypeGroup, "g1")},
		},
	}
	now := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	src := NewSource(newTestClient(t, admin, dir))
	src.now = func() time.Time { return now }

	obs, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("expected one observation, got %d", len(obs))
	}
	got := obs[0]
	if got.CanonicalKey != "domain:amazon.com" || got.DisplayName != "Amazon Web Services" || got.Source != "aws_identity_center" {
		t.Fatalf("unexpected observation %+v", got)
	}
	wantUsers := []spend.DiscoveredUser{{Email: "ana@acme.example", DisplayName: "ana", Source: "aws_identity_center"}}
	if diff := cmp.Diff(wantUsers, got.Users); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"AdministratorAccess"}, got.Scopes); diff != "" {
		t.Fatalf("scopes mismatch (-want +got):\n%s", diff)
	}
	if !got.ObservedAt.Equal(now) {
		t.Fatalf("ObservedAt = %v", got.ObservedAt)
	}
}
