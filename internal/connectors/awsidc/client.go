// Package awsidc reports IAM Identity Center users who hold AWS account access.
package awsidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	idstypes "github.com/aws/aws-sdk-go-v2/service/identitystore/types"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	ssotypes "github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"
	"github.com/stackspend/stackspend/internal/connectors"
)

const sdkHTTPTimeout = 2 * time.Minute

// User is an Identity Center user with the first non-empty email on the profile.
type User struct {
	ID          string
	Email       string
	DisplayName string
}

// Grant is one permission set a user holds in one account. GroupID is set when the grant
// comes through group membership.
type Grant struct {
	UserID        string
	AccountID     string
	PermissionSet string
	GroupID       string
}

// Options configure the client. Without static keys the default credential chain applies.
// InstanceArn and IdentityStoreID are looked up when the account has a single instance.
type Options struct {
	Region          string
	InstanceArn     string
	IdentityStoreID string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Retry wraps every page request; zero means connectors.DefaultRetry.
	Retry connectors.RetryPolicy
}

type adminAPI interface {
	ssoadmin.ListInstancesAPIClient
	ssoadmin.ListPermissionSetsAPIClient
	ssoadmin.ListAccountsForProvisionedPermissionSetAPIClient
	ssoadmin.ListAccountAssignmentsAPIClient
	DescribePermissionSet(context.Context, *ssoadmin.DescribePermissionSetInput, ...func(*ssoadmin.Options)) (*ssoadmin.DescribePermissionSetOutput, error)
}

type directoryAPI interface {
	identitystore.ListUsersAPIClient
	identitystore.ListGroupMembershipsAPIClient
}

type Client struct {
	instanceArn string
	storeID     string
	retry       connectors.RetryPolicy

	admin adminAPI
	dir   directoryAPI
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Region) == "" {
		return nil, errors.New("aws identity center region is required")
	}
	cfg, err := LoadConfig(ctx, opts.Region, opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)
	if err != nil {
		return nil, err
	}
	return NewWithClients(opts, ssoadmin.NewFromConfig(cfg), identitystore.NewFromConfig(cfg))
}

// LoadConfig builds an SDK config for region. Half a static key pair is an error.
func LoadConfig(ctx context.Context, region, accessKeyID, secretAccessKey, sessionToken string) (aws.Config, error) {
	accessKeyID = strings.TrimSpace(accessKeyID)
	secretAccessKey = strings.TrimSpace(secretAccessKey)
	if (accessKeyID == "") != (secretAccessKey == "") {
		return aws.Config{}, errors.New("aws access key id and secret access key are required together")
	}
	loaders := []func(*config.LoadOptions) error{
		config.WithRegion(strings.TrimSpace(region)),
		config.WithHTTPClient(&http.Client{Timeout: sdkHTTPTimeout}),
	}
	if accessKeyID != "" {
		static := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, strings.TrimSpace(sessionToken))
		loaders = append(loaders, config.WithCredentialsProvider(static))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

func NewWithClients(opts Options, admin adminAPI, dir directoryAPI) (*Client, error) {
	if strings.TrimSpace(opts.Region) == "" {
		return nil, errors.New("aws identity center region is required")
	}
	if admin == nil || dir == nil {
		return nil, errors.New("aws identity center clients are required")
	}
	retry := opts.Retry
	if retry.MaxTries == 0 {
		retry = connectors.DefaultRetry
	}
	return &Client{
		instanceArn: strings.TrimSpace(opts.InstanceArn),
		storeID:     strings.TrimSpace(opts.IdentityStoreID),
		retry:       retry,
		admin:       admin,
		dir:         dir,
	}, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	if err := c.resolve(ctx); err != nil {
		return nil, err
	}
	var users []User
	pages := identitystore.NewListUsersPaginator(c.dir, &identitystore.ListUsersInput{IdentityStoreId: aws.String(c.storeID)})
	for pages.HasMorePages() {
		page, err := retried(ctx, c.retry, pages.NextPage)
		if err != nil {
			return nil, err
		}
		for _, u := range page.Users {
			users = append(users, toUser(u))
		}
	}
	return users, nil
}

func toUser(u idstypes.User) User {
	id := strings.TrimSpace(aws.ToString(u.UserId))
	out := User{ID: id, DisplayName: firstNonBlank(aws.ToString(u.DisplayName), aws.ToString(u.UserName), id)}
	for _, e := range u.Emails {
		if v := strings.TrimSpace(aws.ToString(e.Value)); v != "" {
			out.Email = v
			break
		}
	}
	return out
}

// ListGrants walks every provisioned permission set and account, expanding group
// assignments into one grant per member.
func (c *Client) ListGrants(ctx context.Context) ([]Grant, error) {
	if err := c.resolve(ctx); err != nil {
		return nil, err
	}
	sets, err := c.permissionSets(ctx)
	if err != nil {
		return nil, err
	}
	members := map[string][]string{}
	var grants []Grant
	for _, ps := range sets {
		accounts, err := c.provisionedAccounts(ctx, ps.arn)
		if err != nil {
			return nil, err
		}
		for _, account := range accounts {
			assignments, err := c.assignments(ctx, account, ps.arn)
			if err != nil {
				return nil, err
			}
			for _, a := range assignments {
				principal := strings.TrimSpace(aws.ToString(a.PrincipalId))
				if principal == "" {
					continue
				}
				switch a.PrincipalType {
				case ssotypes.PrincipalTypeUser:
					grants = append(grants, Grant{UserID: principal, AccountID: account, PermissionSet: ps.name})
				case ssotypes.PrincipalTypeGroup:
					users, ok := members[principal]
					if !ok {
						if users, err = c.groupMembers(ctx, principal); err != nil {
							return nil, err
						}
						members[principal] = users
					}
					for _, u := range users {
						grants = append(grants, Grant{UserID: u, AccountID: account, PermissionSet: ps.name, GroupID: principal})
					}
				}
			}
		}
	}
	return grants, nil
}

type permissionSet struct{ arn, name string }

func (c *Client) permissionSets(ctx context.Context) ([]permissionSet, error) {
	var out []permissionSet
	pages := ssoadmin.NewListPermissionSetsPaginator(c.admin, &ssoadmin.ListPermissionSetsInput{InstanceArn: aws.String(c.instanceArn)})
	for pages.HasMorePages() {
		page, err := retried(ctx, c.retry, pages.NextPage)
		if err != nil {
			return nil, fmt.Errorf("list permission sets: %w", err)
		}
		for _, arn := range page.PermissionSets {
			if arn = strings.TrimSpace(arn); arn == "" {
				continue
			}
			in := &ssoadmin.DescribePermissionSetInput{
				InstanceArn:      aws.String(c.instanceArn),
				PermissionSetArn: aws.String(arn),
			}
			desc, err := retried(ctx, c.retry, func(ctx context.Context, opts ...func(*ssoadmin.Options)) (*ssoadmin.DescribePermissionSetOutput, error) {
				return c.admin.DescribePermissionSet(ctx, in, opts...)
			})
			if err != nil {
				return nil, fmt.Errorf("describe permission set %s: %w", arn, err)
			}
			name := arn
			if desc.PermissionSet != nil && strings.TrimSpace(aws.ToString(desc.PermissionSet.Name)) != "" {
				name = strings.TrimSpace(aws.ToString(desc.PermissionSet.Name))
			}
			out = append(out, permissionSet{arn: arn, name: name})
		}
	}
	return out, nil
}

func (c *Client) provisionedAccounts(ctx context.Context, setArn string) ([]string, error) {
	var out []string
	pages := ssoadmin.NewListAccountsForProvisionedPermissionSetPaginator(c.admin, &ssoadmin.ListAccountsForProvisionedPermissionSetInput{
		InstanceArn:      aws.String(c.instanceArn),
		PermissionSetArn: aws.String(setArn),
	})
	for pages.HasMorePages() {
		page, err := retried(ctx, c.retry, pages.NextPage)
		if err != nil {
			return nil, err
		}
		for _, id := range page.AccountIds {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (c *Client) assignments(ctx context.Context, account, setArn string) ([]ssotypes.AccountAssignment, error) {
	var out []ssotypes.AccountAssignment
	pages := ssoadmin.NewListAccountAssignmentsPaginator(c.admin, &ssoadmin.ListAccountAssignmentsInput{
		InstanceArn:      aws.String(c.instanceArn),
		AccountId:        aws.String(account),
		PermissionSetArn: aws.String(setArn),
	})
	for pages.HasMorePages() {
		page, err := retried(ctx, c.retry, pages.NextPage)
		if err != nil {
			return nil, err
		}
		out = append(out, page.AccountAssignments...)
	}
	return out, nil
}

func (c *Client) groupMembers(ctx context.Context, groupID string) ([]string, error) {
	var out []string
	pages := identitystore.NewListGroupMembershipsPaginator(c.dir, &identitystore.ListGroupMembershipsInput{
		IdentityStoreId: aws.String(c.storeID),
		GroupId:         aws.String(groupID),
	})
	for pages.HasMorePages() {
		page, err := retried(ctx, c.retry, pages.NextPage)
		if err != nil {
			return nil, err
		}
		for _, m := range page.GroupMemberships {
			if user, ok := m.MemberId.(*idstypes.MemberIdMemberUserId); ok && strings.TrimSpace(user.Value) != "" {
				out = append(out, strings.TrimSpace(user.Value))
			}
		}
	}
	return out, nil
}

// retried runs one SDK call under the retry policy. The SDK's own retryer has already run
// inside each try; this covers failures that outlast it.
func retried[T, O any](ctx context.Context, p connectors.RetryPolicy, call func(context.Context, ...func(O)) (T, error)) (T, error) {
	return connectors.Retry(ctx, p, func() (T, error) {
		out, err := call(ctx)
		if err != nil && !transient(ctx, err) {
			return out, connectors.Permanent(err)
		}
		return out, err
	})
}

// transient reports whether err is worth another try: transport failures, throttling and 5xx.
func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var sc interface{ HTTPStatusCode() int }
	if errors.As(err, &sc) {
		return connectors.RetryableStatus(sc.HTTPStatusCode())
	}
	return true
}

// resolve fills whichever of the instance ARN and identity store id is missing.
func (c *Client) resolve(ctx context.Context) error {
	if c.instanceArn != "" && c.storeID != "" {
		return nil
	}
	var instances []ssotypes.InstanceMetadata
	pages := ssoadmin.NewListInstancesPaginator(c.admin, &ssoadmin.ListInstancesInput{})
	for pages.HasMorePages() {
		page, err := retried(ctx, c.retry, pages.NextPage)
		if err != nil {
			return fmt.Errorf("list identity center instances: %w", err)
		}
		instances = append(instances, page.Instances...)
	}
	arn, store, err := pickInstance(instances, c.instanceArn, c.storeID)
	if err != nil {
		return err
	}
	c.instanceArn, c.storeID = arn, store
	return nil
}

// pickInstance matches on whichever identifier is known. With neither, exactly one
// instance must exist.
func pickInstance(instances []ssotypes.InstanceMetadata, arn, store string) (string, string, error) {
	if len(instances) == 0 {
		return "", "", errors.New("no aws identity center instances found")
	}
	for _, inst := range instances {
		ia, is := aws.ToString(inst.InstanceArn), aws.ToString(inst.IdentityStoreId)
		if (arn != "" && ia == arn) || (arn == "" && store != "" && is == store) {
			return ia, is, nil
		}
	}
	switch {
	case arn != "":
		return "", "", fmt.Errorf("aws identity center instance %s not found", arn)
	case store != "":
		return "", "", fmt.Errorf("aws identity store %s not found", store)
	case len(instances) > 1:
		return "", "", errors.New("several aws identity center instances found; set the instance ARN or identity store id")
	}
	ia, is := aws.ToString(instances[0].InstanceArn), aws.ToString(instances[0].IdentityStoreId)
	if ia == "" || is == "" {
		return "", "", errors.New("aws identity center instance metadata is incomplete")
	}
	return ia, is, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
