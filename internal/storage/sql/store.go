package sql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/wkite/neutron-fwaas/internal/domain"
	"github.com/wkite/neutron-fwaas/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Run migrations
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ============================================
// Rules
// ============================================

const ruleColumns = `id, project_id, name, description, shared, protocol, ip_version,
	 source_ip_address, destination_ip_address,
	 source_port_range_min, source_port_range_max,
	 destination_port_range_min, destination_port_range_max,
	 action, enabled`

func createRule(ctx context.Context, db dbInterface, rule *domain.Rule) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO firewall_rules (`+ruleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rule.ID, rule.ProjectID, rule.Name, rule.Description, rule.Shared,
		rule.Protocol, rule.IPVersion, rule.SourceIPAddress, rule.DestinationIPAddress,
		rule.SourcePortRangeMin, rule.SourcePortRangeMax,
		rule.DestinationPortRangeMin, rule.DestinationPortRangeMax,
		rule.Action, rule.Enabled)
	return wrapUniqueError(err)
}

func (s *Store) CreateRule(ctx context.Context, rule *domain.Rule) error {
	return createRule(ctx, s.db, rule)
}

func (t *Tx) CreateRule(ctx context.Context, rule *domain.Rule) error {
	return createRule(ctx, t.tx, rule)
}

func getRule(ctx context.Context, db dbInterface, id string) (*domain.Rule, error) {
	var rule domain.Rule
	err := db.GetContext(ctx, &rule,
		`SELECT `+ruleColumns+` FROM firewall_rules WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &rule, err
}

func (s *Store) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	return getRule(ctx, s.db, id)
}

func (t *Tx) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	return getRule(ctx, t.tx, id)
}

func listRules(ctx context.Context, db dbInterface, filter domain.RuleFilter) ([]*domain.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM firewall_rules`
	where, args := buildRuleFilter(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY name, id"

	var rules []*domain.Rule
	err := db.SelectContext(ctx, &rules, query, args...)
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func buildRuleFilter(filter domain.RuleFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID, true)
		clauses = append(clauses, fmt.Sprintf("(project_id = $%d OR shared = $%d)", len(args)-1, len(args)))
	}
	if filter.Shared != nil {
		args = append(args, *filter.Shared)
		clauses = append(clauses, fmt.Sprintf("shared = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		clauses = append(clauses, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.Enabled != nil {
		args = append(args, *filter.Enabled)
		clauses = append(clauses, fmt.Sprintf("enabled = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func (s *Store) ListRules(ctx context.Context, filter domain.RuleFilter) ([]*domain.Rule, error) {
	return listRules(ctx, s.db, filter)
}

func (t *Tx) ListRules(ctx context.Context, filter domain.RuleFilter) ([]*domain.Rule, error) {
	return listRules(ctx, t.tx, filter)
}

func getRulesByIDs(ctx context.Context, db dbInterface, ids []string) ([]*domain.Rule, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT `+ruleColumns+` FROM firewall_rules WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rules []*domain.Rule
	err = db.SelectContext(ctx, &rules, db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) GetRulesByIDs(ctx context.Context, ids []string) ([]*domain.Rule, error) {
	return getRulesByIDs(ctx, s.db, ids)
}

func (t *Tx) GetRulesByIDs(ctx context.Context, ids []string) ([]*domain.Rule, error) {
	return getRulesByIDs(ctx, t.tx, ids)
}

func updateRule(ctx context.Context, db dbInterface, rule *domain.Rule) error {
	result, err := db.ExecContext(ctx,
		`UPDATE firewall_rules SET name = $1, description = $2, shared = $3,
		 protocol = $4, ip_version = $5,
		 source_ip_address = $6, destination_ip_address = $7,
		 source_port_range_min = $8, source_port_range_max = $9,
		 destination_port_range_min = $10, destination_port_range_max = $11,
		 action = $12, enabled = $13
		 WHERE id = $14`,
		rule.Name, rule.Description, rule.Shared,
		rule.Protocol, rule.IPVersion,
		rule.SourceIPAddress, rule.DestinationIPAddress,
		rule.SourcePortRangeMin, rule.SourcePortRangeMax,
		rule.DestinationPortRangeMin, rule.DestinationPortRangeMax,
		rule.Action, rule.Enabled, rule.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *domain.Rule) error {
	return updateRule(ctx, s.db, rule)
}

func (t *Tx) UpdateRule(ctx context.Context, rule *domain.Rule) error {
	return updateRule(ctx, t.tx, rule)
}

func deleteRule(ctx context.Context, db dbInterface, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM firewall_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	return deleteRule(ctx, s.db, id)
}

func (t *Tx) DeleteRule(ctx context.Context, id string) error {
	return deleteRule(ctx, t.tx, id)
}

// ============================================
// Policies
// ============================================

func createPolicy(ctx context.Context, db dbInterface, policy *domain.Policy) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO firewall_policies (id, project_id, name, description, audited, shared)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		policy.ID, policy.ProjectID, policy.Name, policy.Description,
		policy.Audited, policy.Shared)
	return wrapUniqueError(err)
}

func (s *Store) CreatePolicy(ctx context.Context, policy *domain.Policy) error {
	return createPolicy(ctx, s.db, policy)
}

func (t *Tx) CreatePolicy(ctx context.Context, policy *domain.Policy) error {
	return createPolicy(ctx, t.tx, policy)
}

func getPolicy(ctx context.Context, db dbInterface, id string) (*domain.Policy, error) {
	var policy domain.Policy
	err := db.GetContext(ctx, &policy,
		`SELECT id, project_id, name, description, audited, shared
		 FROM firewall_policies WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &policy, err
}

func (s *Store) GetPolicy(ctx context.Context, id string) (*domain.Policy, error) {
	return getPolicy(ctx, s.db, id)
}

func (t *Tx) GetPolicy(ctx context.Context, id string) (*domain.Policy, error) {
	return getPolicy(ctx, t.tx, id)
}

func listPolicies(ctx context.Context, db dbInterface, filter domain.PolicyFilter) ([]*domain.Policy, error) {
	query := `SELECT id, project_id, name, description, audited, shared FROM firewall_policies`
	var clauses []string
	var args []any
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID, true)
		clauses = append(clauses, fmt.Sprintf("(project_id = $%d OR shared = $%d)", len(args)-1, len(args)))
	}
	if filter.Shared != nil {
		args = append(args, *filter.Shared)
		clauses = append(clauses, fmt.Sprintf("shared = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name, id"

	var policies []*domain.Policy
	err := db.SelectContext(ctx, &policies, query, args...)
	if err != nil {
		return nil, err
	}
	return policies, nil
}

func (s *Store) ListPolicies(ctx context.Context, filter domain.PolicyFilter) ([]*domain.Policy, error) {
	return listPolicies(ctx, s.db, filter)
}

func (t *Tx) ListPolicies(ctx context.Context, filter domain.PolicyFilter) ([]*domain.Policy, error) {
	return listPolicies(ctx, t.tx, filter)
}

func updatePolicy(ctx context.Context, db dbInterface, policy *domain.Policy) error {
	result, err := db.ExecContext(ctx,
		`UPDATE firewall_policies SET name = $1, description = $2, audited = $3, shared = $4
		 WHERE id = $5`,
		policy.Name, policy.Description, policy.Audited, policy.Shared, policy.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePolicy(ctx context.Context, policy *domain.Policy) error {
	return updatePolicy(ctx, s.db, policy)
}

func (t *Tx) UpdatePolicy(ctx context.Context, policy *domain.Policy) error {
	return updatePolicy(ctx, t.tx, policy)
}

func setPolicyAudited(ctx context.Context, db dbInterface, id string, audited bool) error {
	_, err := db.ExecContext(ctx,
		`UPDATE firewall_policies SET audited = $1 WHERE id = $2`, audited, id)
	return err
}

func (s *Store) SetPolicyAudited(ctx context.Context, id string, audited bool) error {
	return setPolicyAudited(ctx, s.db, id, audited)
}

func (t *Tx) SetPolicyAudited(ctx context.Context, id string, audited bool) error {
	return setPolicyAudited(ctx, t.tx, id, audited)
}

func deletePolicy(ctx context.Context, db dbInterface, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM firewall_policies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, id string) error {
	return deletePolicy(ctx, s.db, id)
}

func (t *Tx) DeletePolicy(ctx context.Context, id string) error {
	return deletePolicy(ctx, t.tx, id)
}

func lockPolicy(ctx context.Context, db dbInterface, id string) error {
	query := `SELECT id FROM firewall_policies WHERE id = $1`
	// SQLite serializes writers on its own and has no FOR UPDATE.
	if db.DriverName() == "postgres" {
		query += ` FOR UPDATE`
	}
	var locked string
	err := db.GetContext(ctx, &locked, query, id)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) LockPolicy(ctx context.Context, id string) error {
	// Locking outside a transaction has no effect beyond an existence check.
	return lockPolicy(ctx, s.db, id)
}

func (t *Tx) LockPolicy(ctx context.Context, id string) error {
	return lockPolicy(ctx, t.tx, id)
}

// ============================================
// Policy/rule associations
// ============================================

func listPolicyRuleAssociations(ctx context.Context, db dbInterface, policyID string) ([]*domain.PolicyRuleAssociation, error) {
	var assocs []*domain.PolicyRuleAssociation
	err := db.SelectContext(ctx, &assocs,
		`SELECT firewall_policy_id, firewall_rule_id, position
		 FROM firewall_policy_rule_associations
		 WHERE firewall_policy_id = $1 ORDER BY position`, policyID)
	if err != nil {
		return nil, err
	}
	return assocs, nil
}

func (s *Store) ListPolicyRuleAssociations(ctx context.Context, policyID string) ([]*domain.PolicyRuleAssociation, error) {
	return listPolicyRuleAssociations(ctx, s.db, policyID)
}

func (t *Tx) ListPolicyRuleAssociations(ctx context.Context, policyID string) ([]*domain.PolicyRuleAssociation, error) {
	return listPolicyRuleAssociations(ctx, t.tx, policyID)
}

func getPolicyRuleAssociation(ctx context.Context, db dbInterface, policyID, ruleID string) (*domain.PolicyRuleAssociation, error) {
	var assoc domain.PolicyRuleAssociation
	err := db.GetContext(ctx, &assoc,
		`SELECT firewall_policy_id, firewall_rule_id, position
		 FROM firewall_policy_rule_associations
		 WHERE firewall_policy_id = $1 AND firewall_rule_id = $2`, policyID, ruleID)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &assoc, err
}

func (s *Store) GetPolicyRuleAssociation(ctx context.Context, policyID, ruleID string) (*domain.PolicyRuleAssociation, error) {
	return getPolicyRuleAssociation(ctx, s.db, policyID, ruleID)
}

func (t *Tx) GetPolicyRuleAssociation(ctx context.Context, policyID, ruleID string) (*domain.PolicyRuleAssociation, error) {
	return getPolicyRuleAssociation(ctx, t.tx, policyID, ruleID)
}

func createPolicyRuleAssociation(ctx context.Context, db dbInterface, assoc *domain.PolicyRuleAssociation) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO firewall_policy_rule_associations (firewall_policy_id, firewall_rule_id, position)
		 VALUES ($1, $2, $3)`,
		assoc.PolicyID, assoc.RuleID, assoc.Position)
	return wrapUniqueError(err)
}

func (s *Store) CreatePolicyRuleAssociation(ctx context.Context, assoc *domain.PolicyRuleAssociation) error {
	return createPolicyRuleAssociation(ctx, s.db, assoc)
}

func (t *Tx) CreatePolicyRuleAssociation(ctx context.Context, assoc *domain.PolicyRuleAssociation) error {
	return createPolicyRuleAssociation(ctx, t.tx, assoc)
}

func setPolicyRuleAssociationPosition(ctx context.Context, db dbInterface, policyID, ruleID string, position int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE firewall_policy_rule_associations SET position = $1
		 WHERE firewall_policy_id = $2 AND firewall_rule_id = $3`,
		position, policyID, ruleID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) SetPolicyRuleAssociationPosition(ctx context.Context, policyID, ruleID string, position int) error {
	return setPolicyRuleAssociationPosition(ctx, s.db, policyID, ruleID, position)
}

func (t *Tx) SetPolicyRuleAssociationPosition(ctx context.Context, policyID, ruleID string, position int) error {
	return setPolicyRuleAssociationPosition(ctx, t.tx, policyID, ruleID, position)
}

func deletePolicyRuleAssociation(ctx context.Context, db dbInterface, policyID, ruleID string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM firewall_policy_rule_associations
		 WHERE firewall_policy_id = $1 AND firewall_rule_id = $2`, policyID, ruleID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePolicyRuleAssociation(ctx context.Context, policyID, ruleID string) error {
	return deletePolicyRuleAssociation(ctx, s.db, policyID, ruleID)
}

func (t *Tx) DeletePolicyRuleAssociation(ctx context.Context, policyID, ruleID string) error {
	return deletePolicyRuleAssociation(ctx, t.tx, policyID, ruleID)
}

func deletePolicyRuleAssociations(ctx context.Context, db dbInterface, policyID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM firewall_policy_rule_associations WHERE firewall_policy_id = $1`, policyID)
	return err
}

func (s *Store) DeletePolicyRuleAssociations(ctx context.Context, policyID string) error {
	return deletePolicyRuleAssociations(ctx, s.db, policyID)
}

func (t *Tx) DeletePolicyRuleAssociations(ctx context.Context, policyID string) error {
	return deletePolicyRuleAssociations(ctx, t.tx, policyID)
}

func getPoliciesWithRule(ctx context.Context, db dbInterface, ruleID string) ([]string, error) {
	var ids []string
	err := db.SelectContext(ctx, &ids,
		`SELECT firewall_policy_id FROM firewall_policy_rule_associations
		 WHERE firewall_rule_id = $1`, ruleID)
	return ids, err
}

func (s *Store) GetPoliciesWithRule(ctx context.Context, ruleID string) ([]string, error) {
	return getPoliciesWithRule(ctx, s.db, ruleID)
}

func (t *Tx) GetPoliciesWithRule(ctx context.Context, ruleID string) ([]string, error) {
	return getPoliciesWithRule(ctx, t.tx, ruleID)
}

// ============================================
// Groups
// ============================================

const groupColumns = `id, project_id, name, description,
	 ingress_firewall_policy_id, egress_firewall_policy_id,
	 admin_state_up, status, shared`

func createGroup(ctx context.Context, db dbInterface, group *domain.Group) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO firewall_groups (`+groupColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		group.ID, group.ProjectID, group.Name, group.Description,
		group.IngressPolicyID, group.EgressPolicyID,
		group.AdminStateUp, group.Status, group.Shared)
	return wrapUniqueError(err)
}

func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) error {
	return createGroup(ctx, s.db, group)
}

func (t *Tx) CreateGroup(ctx context.Context, group *domain.Group) error {
	return createGroup(ctx, t.tx, group)
}

func getGroup(ctx context.Context, db dbInterface, id string) (*domain.Group, error) {
	var group domain.Group
	err := db.GetContext(ctx, &group,
		`SELECT `+groupColumns+` FROM firewall_groups WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	group.Ports, err = listGroupPorts(ctx, db, group.ID)
	return &group, err
}

func (s *Store) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	return getGroup(ctx, s.db, id)
}

func (t *Tx) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	return getGroup(ctx, t.tx, id)
}

func listGroups(ctx context.Context, db dbInterface, filter domain.GroupFilter) ([]*domain.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM firewall_groups`
	var clauses []string
	var args []any
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID, true)
		clauses = append(clauses, fmt.Sprintf("(project_id = $%d OR shared = $%d)", len(args)-1, len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Shared != nil {
		args = append(args, *filter.Shared)
		clauses = append(clauses, fmt.Sprintf("shared = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name, id"

	var groups []*domain.Group
	if err := db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, err
	}
	for _, group := range groups {
		ports, err := listGroupPorts(ctx, db, group.ID)
		if err != nil {
			return nil, err
		}
		group.Ports = ports
	}
	return groups, nil
}

func (s *Store) ListGroups(ctx context.Context, filter domain.GroupFilter) ([]*domain.Group, error) {
	return listGroups(ctx, s.db, filter)
}

func (t *Tx) ListGroups(ctx context.Context, filter domain.GroupFilter) ([]*domain.Group, error) {
	return listGroups(ctx, t.tx, filter)
}

func updateGroup(ctx context.Context, db dbInterface, group *domain.Group) error {
	result, err := db.ExecContext(ctx,
		`UPDATE firewall_groups SET name = $1, description = $2,
		 ingress_firewall_policy_id = $3, egress_firewall_policy_id = $4,
		 admin_state_up = $5, status = $6, shared = $7
		 WHERE id = $8`,
		group.Name, group.Description,
		group.IngressPolicyID, group.EgressPolicyID,
		group.AdminStateUp, group.Status, group.Shared, group.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateGroup(ctx context.Context, group *domain.Group) error {
	return updateGroup(ctx, s.db, group)
}

func (t *Tx) UpdateGroup(ctx context.Context, group *domain.Group) error {
	return updateGroup(ctx, t.tx, group)
}

func updateGroupStatusNotIn(ctx context.Context, db dbInterface, id, status string, notIn []string) (int, error) {
	query := `UPDATE firewall_groups SET status = ? WHERE id = ?`
	args := []any{status, id}
	if len(notIn) > 0 {
		inQuery, inArgs, err := sqlx.In(` AND status NOT IN (?)`, notIn)
		if err != nil {
			return 0, err
		}
		query += inQuery
		args = append(args, inArgs...)
	}
	result, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (s *Store) UpdateGroupStatusNotIn(ctx context.Context, id, status string, notIn []string) (int, error) {
	return updateGroupStatusNotIn(ctx, s.db, id, status, notIn)
}

func (t *Tx) UpdateGroupStatusNotIn(ctx context.Context, id, status string, notIn []string) (int, error) {
	return updateGroupStatusNotIn(ctx, t.tx, id, status, notIn)
}

func deleteGroup(ctx context.Context, db dbInterface, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM firewall_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	return deleteGroup(ctx, s.db, id)
}

func (t *Tx) DeleteGroup(ctx context.Context, id string) error {
	return deleteGroup(ctx, t.tx, id)
}

func getGroupsWithPolicy(ctx context.Context, db dbInterface, policyID string) ([]*domain.Group, error) {
	var groups []*domain.Group
	err := db.SelectContext(ctx, &groups,
		`SELECT `+groupColumns+` FROM firewall_groups
		 WHERE ingress_firewall_policy_id = $1 OR egress_firewall_policy_id = $2`,
		policyID, policyID)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Store) GetGroupsWithPolicy(ctx context.Context, policyID string) ([]*domain.Group, error) {
	return getGroupsWithPolicy(ctx, s.db, policyID)
}

func (t *Tx) GetGroupsWithPolicy(ctx context.Context, policyID string) ([]*domain.Group, error) {
	return getGroupsWithPolicy(ctx, t.tx, policyID)
}

// ============================================
// Group/port associations
// ============================================

func createPortAssociation(ctx context.Context, db dbInterface, groupID, portID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO firewall_group_port_associations (firewall_group_id, port_id)
		 VALUES ($1, $2)`, groupID, portID)
	return wrapUniqueError(err)
}

func (s *Store) CreatePortAssociation(ctx context.Context, groupID, portID string) error {
	return createPortAssociation(ctx, s.db, groupID, portID)
}

func (t *Tx) CreatePortAssociation(ctx context.Context, groupID, portID string) error {
	return createPortAssociation(ctx, t.tx, groupID, portID)
}

func listGroupPorts(ctx context.Context, db dbInterface, groupID string) ([]string, error) {
	var ports []string
	err := db.SelectContext(ctx, &ports,
		`SELECT port_id FROM firewall_group_port_associations
		 WHERE firewall_group_id = $1 ORDER BY port_id`, groupID)
	return ports, err
}

func (s *Store) ListGroupPorts(ctx context.Context, groupID string) ([]string, error) {
	return listGroupPorts(ctx, s.db, groupID)
}

func (t *Tx) ListGroupPorts(ctx context.Context, groupID string) ([]string, error) {
	return listGroupPorts(ctx, t.tx, groupID)
}

func deleteGroupPorts(ctx context.Context, db dbInterface, groupID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM firewall_group_port_associations WHERE firewall_group_id = $1`, groupID)
	return err
}

func (s *Store) DeleteGroupPorts(ctx context.Context, groupID string) error {
	return deleteGroupPorts(ctx, s.db, groupID)
}

func (t *Tx) DeleteGroupPorts(ctx context.Context, groupID string) error {
	return deleteGroupPorts(ctx, t.tx, groupID)
}

func getGroupIDForPort(ctx context.Context, db dbInterface, portID string) (string, error) {
	var groupID string
	err := db.GetContext(ctx, &groupID,
		`SELECT firewall_group_id FROM firewall_group_port_associations
		 WHERE port_id = $1`, portID)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	return groupID, err
}

func (s *Store) GetGroupIDForPort(ctx context.Context, portID string) (string, error) {
	return getGroupIDForPort(ctx, s.db, portID)
}

func (t *Tx) GetGroupIDForPort(ctx context.Context, portID string) (string, error) {
	return getGroupIDForPort(ctx, t.tx, portID)
}

// ============================================
// Default group markers
// ============================================

func createDefaultGroupMarker(ctx context.Context, db dbInterface, marker *domain.DefaultGroupMarker) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO default_firewall_groups (project_id, firewall_group_id)
		 VALUES ($1, $2)`, marker.ProjectID, marker.GroupID)
	return wrapUniqueError(err)
}

func (s *Store) CreateDefaultGroupMarker(ctx context.Context, marker *domain.DefaultGroupMarker) error {
	return createDefaultGroupMarker(ctx, s.db, marker)
}

func (t *Tx) CreateDefaultGroupMarker(ctx context.Context, marker *domain.DefaultGroupMarker) error {
	return createDefaultGroupMarker(ctx, t.tx, marker)
}

func getDefaultGroupMarker(ctx context.Context, db dbInterface, projectID string) (*domain.DefaultGroupMarker, error) {
	var marker domain.DefaultGroupMarker
	err := db.GetContext(ctx, &marker,
		`SELECT project_id, firewall_group_id FROM default_firewall_groups
		 WHERE project_id = $1`, projectID)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &marker, err
}

func (s *Store) GetDefaultGroupMarker(ctx context.Context, projectID string) (*domain.DefaultGroupMarker, error) {
	return getDefaultGroupMarker(ctx, s.db, projectID)
}

func (t *Tx) GetDefaultGroupMarker(ctx context.Context, projectID string) (*domain.DefaultGroupMarker, error) {
	return getDefaultGroupMarker(ctx, t.tx, projectID)
}
