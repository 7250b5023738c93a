package database

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	dgo "github.com/dgraph-io/dgo/v200"
	"github.com/dgraph-io/dgo/v200/protos/api"
	"github.com/pkg/errors"
	"github.com/rentwise/rentwise/internal/model"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// DgraphDB holds connection to a Dgraph DB instance. Collections map to
// Dgraph types and document fields to predicates.
type DgraphDB struct {
	// The underlying gRPC connection.
	conn *grpc.ClientConn

	// The Dgraph client, wrapping conn.
	DB *dgo.Dgraph

	indexes []Index
	logger  *zap.Logger
}

const (
	predicateType = "dgraph.type"
	predicateXID  = "xid"
)

var (
	uidRegex        = regexp.MustCompile(`^0x[0-9a-f]+$`)
	identifierRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
)

// collectionFields lists the predicates of each known type so that
// expand(_all_) can return them.
var collectionFields = map[string][]string{
	model.CollectionUsers: {
		model.UserFieldEmail,
		model.UserFieldFirstName,
		model.UserFieldLastName,
		model.UserFieldPhone,
		model.UserFieldGender,
		model.UserFieldAddress,
		model.UserFieldCity,
		model.UserFieldState,
		model.UserFieldPostalCode,
		model.UserFieldRole,
		model.UserFieldCreatedAt,
	},
	model.CollectionTenancies: {
		model.TenancyFieldFreeReviewEligible,
		model.TenancyFieldLandlordReviewable,
		model.TenancyFieldMutualReviewAgreed,
		model.TenancyFieldTenantVerified,
		model.TenancyFieldLandlordVerified,
		model.TenancyFieldAddressVerified,
		model.TenancyFieldDocumentsVerified,
		model.TenancyFieldRequires2FA,
		model.TenancyFieldResendCount,
		model.TenancyFieldSchemaVersion,
	},
	CollectionMigrations: {"cursor", "updatedAt"},
}

// NewDgraphDB creates a new Dgraph database connection to addr
// and applies the schema for the given indexes.
func NewDgraphDB(ctx context.Context, addr string, logger *zap.Logger, indexes ...Index) (*DgraphDB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := grpc.Dial(addr, grpc.WithInsecure())
	if err != nil {
		return nil, errors.Wrap(err, "dialing dgraph")
	}

	db := &DgraphDB{
		conn:    conn,
		DB:      dgo.NewDgraphClient(api.NewDgraphClient(conn)),
		indexes: indexes,
		logger:  logger.Named("dgraph"),
	}
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Migrate declares predicates, indexes and types.
func (db *DgraphDB) Migrate(ctx context.Context) error {
	op := &api.Operation{Schema: db.schema()}
	db.logger.Debug("Applying schema", zap.String("schema", op.Schema))
	return errors.Wrap(db.DB.Alter(ctx, op), "applying dgraph schema")
}

func (db *DgraphDB) schema() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: string @index(exact) @upsert .\n", predicateXID)
	for _, idx := range db.indexes {
		if idx.Unique {
			fmt.Fprintf(&sb, "%s: string @index(exact) @upsert .\n", idx.Field)
		} else {
			fmt.Fprintf(&sb, "%s: string @index(exact) .\n", idx.Field)
		}
	}
	for collection, fields := range collectionFields {
		fmt.Fprintf(&sb, "type %s {\n\t%s\n", collection, predicateXID)
		for _, field := range fields {
			fmt.Fprintf(&sb, "\t%s\n", field)
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}

// Close handles closing all connections to the database.
func (db *DgraphDB) Close() error {
	return db.conn.Close()
}

func validateIdentifier(s string) error {
	if !identifierRegex.MatchString(s) {
		return fmt.Errorf("invalid identifier: %q", s)
	}
	return nil
}

// fromNode converts a node returned by expand(_all_) into a document.
func fromNode(node map[string]interface{}) Document {
	doc := Document(node)
	if xid, ok := doc[predicateXID].(string); ok && xid != "" {
		doc[FieldID] = xid
	} else {
		doc[FieldID] = doc["uid"]
	}
	delete(doc, "uid")
	delete(doc, predicateXID)
	delete(doc, predicateType)
	return doc
}

func (db *DgraphDB) queryNodes(ctx context.Context, txn *dgo.Txn, q string, vars map[string]string) ([]map[string]interface{}, error) {
	resp, err := txn.QueryWithVars(ctx, q, vars)
	if err != nil {
		return nil, err
	}
	var response struct {
		Nodes []map[string]interface{} `json:"q"`
	}
	if err := json.Unmarshal(resp.Json, &response); err != nil {
		return nil, err
	}
	return response.Nodes, nil
}

// Insert registers a new node, guarded by an upsert block on every unique
// index so that a concurrent duplicate cannot slip in.
func (db *DgraphDB) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	if err := validateIdentifier(collection); err != nil {
		return "", err
	}
	node := map[string]interface{}{"uid": "_:doc", predicateType: collection}
	for k, v := range applyPatch(nil, doc) {
		node[k] = v
	}
	b, err := json.Marshal(node)
	if err != nil {
		return "", err
	}

	var blocks, conds []string
	vars := map[string]string{}
	for i, idx := range indexesFor(db.indexes, collection) {
		v, ok := doc[idx.Field]
		if !idx.Unique || !ok || v == nil {
			continue
		}
		name := fmt.Sprintf("$v%d", i)
		vars[name] = indexValue(v)
		blocks = append(blocks, fmt.Sprintf("u%d as var(func: eq(%s, %s)) @filter(type(%s))", i, idx.Field, name, collection))
		conds = append(conds, fmt.Sprintf("eq(len(u%d), 0)", i))
	}

	mu := &api.Mutation{SetJson: b}
	req := &api.Request{Mutations: []*api.Mutation{mu}, CommitNow: true}
	if len(blocks) > 0 {
		params := make([]string, 0, len(vars))
		for name := range vars {
			params = append(params, name+": string")
		}
		req.Query = fmt.Sprintf("query q(%s) {\n%s\n}", strings.Join(params, ", "), strings.Join(blocks, "\n"))
		req.Vars = vars
		mu.Cond = fmt.Sprintf("@if(%s)", strings.Join(conds, " AND "))
	}

	resp, err := db.DB.NewTxn().Do(ctx, req)
	if err != nil {
		return "", errors.Wrapf(err, "inserting into %s", collection)
	}
	id, ok := resp.Uids["doc"]
	if !ok {
		return "", errors.Wrapf(ErrDuplicate, "inserting into %s", collection)
	}
	return id, nil
}

func (db *DgraphDB) get(ctx context.Context, txn *dgo.Txn, collection, id string) (Document, error) {
	var q string
	vars := map[string]string{"$id": id}
	if uidRegex.MatchString(id) {
		q = fmt.Sprintf(`query q($id: string) {
			q(func: uid($id)) @filter(type(%s)) { uid expand(_all_) }
		}`, collection)
	} else {
		q = fmt.Sprintf(`query q($id: string) {
			q(func: eq(%s, $id)) @filter(type(%s)) { uid %s expand(_all_) }
		}`, predicateXID, collection, predicateXID)
	}
	nodes, err := db.queryNodes(ctx, txn, q, vars)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return fromNode(nodes[0]), nil
}

// Get retrieves a node by uid, or by external id for nodes written with Put.
func (db *DgraphDB) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validateIdentifier(collection); err != nil {
		return nil, err
	}
	txn := db.DB.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	doc, err := db.get(ctx, txn, collection, id)
	return doc, errors.Wrapf(err, "getting %s/%s", collection, id)
}

// GetByIndex retrieves the first node whose indexed predicate equals value.
func (db *DgraphDB) GetByIndex(ctx context.Context, collection, field string, value interface{}) (Document, error) {
	if _, ok := findIndex(db.indexes, collection, field); !ok {
		return nil, errors.Wrapf(ErrNoIndex, "%s.%s", collection, field)
	}
	if err := validateIdentifier(collection); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`query q($v: string) {
		q(func: eq(%s, $v), first: 1) @filter(type(%s)) { uid expand(_all_) }
	}`, field, collection)

	txn := db.DB.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	nodes, err := db.queryNodes(ctx, txn, q, map[string]string{"$v": indexValue(value)})
	if err != nil {
		return nil, errors.Wrapf(err, "looking up %s.%s", collection, field)
	}
	if len(nodes) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "looking up %s.%s", collection, field)
	}
	return fromNode(nodes[0]), nil
}

// Patch sets and deletes predicates on an existing node in one transaction.
func (db *DgraphDB) Patch(ctx context.Context, collection, id string, fields Document) error {
	if err := validateIdentifier(collection); err != nil {
		return err
	}
	txn := db.DB.NewTxn()
	defer txn.Discard(ctx)

	existing, err := db.get(ctx, txn, collection, id)
	if err != nil {
		return errors.Wrapf(err, "patching %s/%s", collection, id)
	}
	uid := existing.ID()
	if !uidRegex.MatchString(uid) {
		// Nodes written with Put report their external id.
		uid, err = db.uidForXID(ctx, txn, collection, id)
		if err != nil {
			return errors.Wrapf(err, "patching %s/%s", collection, id)
		}
	}

	set := map[string]interface{}{"uid": uid}
	del := map[string]interface{}{"uid": uid}
	for k, v := range fields {
		if k == FieldID {
			continue
		}
		if err := validateIdentifier(k); err != nil {
			return err
		}
		if v == nil {
			del[k] = nil
			continue
		}
		if idx, ok := findIndex(db.indexes, collection, k); ok && idx.Unique {
			if err := db.checkUnique(ctx, txn, collection, k, v, uid); err != nil {
				return err
			}
		}
		set[k] = v
	}

	mu := &api.Mutation{}
	if len(set) > 1 {
		if mu.SetJson, err = json.Marshal(set); err != nil {
			return err
		}
	}
	if len(del) > 1 {
		if mu.DeleteJson, err = json.Marshal(del); err != nil {
			return err
		}
	}
	if mu.SetJson != nil || mu.DeleteJson != nil {
		if _, err := txn.Mutate(ctx, mu); err != nil {
			return errors.Wrapf(err, "patching %s/%s", collection, id)
		}
	}
	return errors.Wrapf(txn.Commit(ctx), "patching %s/%s", collection, id)
}

func (db *DgraphDB) uidForXID(ctx context.Context, txn *dgo.Txn, collection, xid string) (string, error) {
	q := fmt.Sprintf(`query q($id: string) {
		q(func: eq(%s, $id)) @filter(type(%s)) { uid }
	}`, predicateXID, collection)
	nodes, err := db.queryNodes(ctx, txn, q, map[string]string{"$id": xid})
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", ErrNotFound
	}
	uid, _ := nodes[0]["uid"].(string)
	return uid, nil
}

func (db *DgraphDB) checkUnique(ctx context.Context, txn *dgo.Txn, collection, field string, value interface{}, uid string) error {
	q := fmt.Sprintf(`query q($v: string) {
		q(func: eq(%s, $v)) @filter(type(%s)) { uid }
	}`, field, collection)
	nodes, err := db.queryNodes(ctx, txn, q, map[string]string{"$v": indexValue(value)})
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if node["uid"] != uid {
			return errors.Wrapf(ErrDuplicate, "%s.%s", collection, field)
		}
	}
	return nil
}

// Put upserts a node keyed by an external id.
func (db *DgraphDB) Put(ctx context.Context, collection, id string, doc Document) error {
	if err := validateIdentifier(collection); err != nil {
		return err
	}
	node := map[string]interface{}{
		"uid":         "uid(u)",
		predicateType: collection,
		predicateXID:  id,
	}
	for k, v := range applyPatch(nil, doc) {
		node[k] = v
	}
	b, err := json.Marshal(node)
	if err != nil {
		return err
	}
	req := &api.Request{
		Query: fmt.Sprintf(`query q($id: string) {
			u as var(func: eq(%s, $id)) @filter(type(%s))
		}`, predicateXID, collection),
		Vars:      map[string]string{"$id": id},
		Mutations: []*api.Mutation{{SetJson: b}},
		CommitNow: true,
	}
	_, err = db.DB.NewTxn().Do(ctx, req)
	return errors.Wrapf(err, "putting %s/%s", collection, id)
}

// CollectAll lists every node of the collection's type.
func (db *DgraphDB) CollectAll(ctx context.Context, collection string) ([]Document, error) {
	var all []Document
	after := ""
	for {
		docs, next, err := db.Scan(ctx, collection, after, 500)
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)
		if next == "" {
			return all, nil
		}
		after = next
	}
}

// Scan pages through the collection in uid order.
func (db *DgraphDB) Scan(ctx context.Context, collection, after string, limit int) ([]Document, string, error) {
	if err := validateIdentifier(collection); err != nil {
		return nil, "", err
	}
	var args []string
	if limit > 0 {
		args = append(args, fmt.Sprintf("first: %d", limit+1))
	}
	if after != "" {
		if !uidRegex.MatchString(after) {
			return nil, "", fmt.Errorf("invalid cursor: %q", after)
		}
		args = append(args, "after: "+after)
	}
	params := ""
	if len(args) > 0 {
		params = ", " + strings.Join(args, ", ")
	}
	q := fmt.Sprintf(`{
		q(func: type(%s)%s) { uid %s expand(_all_) }
	}`, collection, params, predicateXID)

	txn := db.DB.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	nodes, err := db.queryNodes(ctx, txn, q, nil)
	if err != nil {
		return nil, "", errors.Wrapf(err, "scanning %s", collection)
	}

	var next string
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
		next, _ = nodes[limit-1]["uid"].(string)
	}
	docs := make([]Document, 0, len(nodes))
	for _, node := range nodes {
		docs = append(docs, fromNode(node))
	}
	return docs, next, nil
}
