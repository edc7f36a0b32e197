package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"carlot/internal/failure"
	"carlot/internal/links"
	"carlot/internal/models"
	"carlot/internal/store"
	"carlot/internal/upload"
)

const (
	picIDsField    = "pic_ids"
	picIDsCamel    = "picIds"
	assetNameField = "name"
)

// FormSource is an upload source that also carries plain form fields. Fields
// are complete only after Next has returned io.EOF.
type FormSource interface {
	upload.Source
	Fields() map[string]string
}

// RecordService orchestrates uploads, record writes and link changes.
type RecordService struct {
	store    store.RecordStore
	pipeline *upload.Pipeline
	links    *links.Manager
	logger   *slog.Logger
}

// NewRecordService constructs a RecordService.
func NewRecordService(recordStore store.RecordStore, pipeline *upload.Pipeline, manager *links.Manager, logger *slog.Logger) *RecordService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordService{store: recordStore, pipeline: pipeline, links: manager, logger: logger}
}

// CreateVehicle stores every uploaded file and creates a vehicle that lists
// them in arrival order.
func (s *RecordService) CreateVehicle(ctx context.Context, src FormSource) (models.Vehicle, error) {
	var zero models.Vehicle
	if err := s.ready(); err != nil {
		return zero, err
	}

	refs, err := s.pipeline.Accept(ctx, src)
	if err != nil {
		return zero, err
	}
	ids := models.ObjectIDs(refs)

	vehicle := models.Vehicle{PicIDs: ids}
	s.ignoreUnknown(vehicle.ApplyFields(withoutKeys(src.Fields(), picIDsField, picIDsCamel)))

	if err := s.store.CreateVehicle(ctx, &vehicle); err != nil {
		s.logOrphans("create vehicle failed after upload", ids, err)
		return zero, storeFailure(err)
	}
	return vehicle, nil
}

// CreateAssetGroup stores every uploaded file under a new asset group.
func (s *RecordService) CreateAssetGroup(ctx context.Context, src FormSource) (models.AssetGroup, error) {
	var zero models.AssetGroup
	if err := s.ready(); err != nil {
		return zero, err
	}

	refs, err := s.pipeline.Accept(ctx, src)
	if err != nil {
		return zero, err
	}
	ids := models.ObjectIDs(refs)
	fields := src.Fields()

	group := models.AssetGroup{Name: fields[assetNameField], PicIDs: ids}
	s.ignoreUnknown(unknownKeys(fields, assetNameField))

	if err := s.store.CreateAssetGroup(ctx, &group); err != nil {
		s.logOrphans("create asset group failed after upload", ids, err)
		return zero, storeFailure(err)
	}
	return group, nil
}

// Attach uploads files and appends them to an existing record.
func (s *RecordService) Attach(ctx context.Context, rec models.RecordRef, src FormSource) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.ensureRecord(ctx, rec); err != nil {
		return nil, err
	}

	refs, err := s.pipeline.Accept(ctx, src)
	if err != nil {
		return nil, err
	}
	ids := models.ObjectIDs(refs)
	if len(ids) == 0 {
		current, _, err := s.store.GetObjectIDs(ctx, rec)
		if err != nil {
			return nil, storeFailure(err)
		}
		return current, nil
	}

	linked, err := s.links.Attach(ctx, rec, ids)
	if err != nil {
		s.logOrphans("attach failed after upload", ids, err)
		return nil, err
	}
	return linked, nil
}

// AttachVehicle appends uploaded files to a vehicle and returns it.
func (s *RecordService) AttachVehicle(ctx context.Context, id string, src FormSource) (models.Vehicle, error) {
	var zero models.Vehicle
	if _, err := s.Attach(ctx, models.VehicleRef(id), src); err != nil {
		return zero, err
	}
	vehicle, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return zero, storeFailure(err)
	}
	if vehicle == nil {
		return zero, failure.New(failure.NotFound, failure.ReasonRecordNotFound, "%s", models.VehicleRef(id))
	}
	return *vehicle, nil
}

// AttachAssetGroup appends uploaded files to an asset group and returns it.
func (s *RecordService) AttachAssetGroup(ctx context.Context, id string, src FormSource) (models.AssetGroup, error) {
	var zero models.AssetGroup
	if _, err := s.Attach(ctx, models.AssetRef(id), src); err != nil {
		return zero, err
	}
	group, err := s.store.GetAssetGroup(ctx, id)
	if err != nil {
		return zero, storeFailure(err)
	}
	if group == nil {
		return zero, failure.New(failure.NotFound, failure.ReasonRecordNotFound, "%s", models.AssetRef(id))
	}
	return *group, nil
}

// ReplaceVehicle uploads new files, sets pic_ids to the retained list followed
// by the new ids, and applies any scalar fields. Without a pic_ids field the
// current list is kept and new ids are appended.
func (s *RecordService) ReplaceVehicle(ctx context.Context, id string, src FormSource) (models.Vehicle, error) {
	var zero models.Vehicle
	if err := s.ready(); err != nil {
		return zero, err
	}
	rec := models.VehicleRef(id)
	if err := s.ensureRecord(ctx, rec); err != nil {
		return zero, err
	}

	refs, err := s.pipeline.Accept(ctx, &retainedCheckSource{FormSource: src})
	if err != nil {
		return zero, err
	}
	ids := models.ObjectIDs(refs)
	fields := src.Fields()

	// Forms that send pic_ids after the files are only checked here.
	raw, hasRetained := retainedField(fields)
	if hasRetained {
		retained, err := parseRetainedIDs(raw)
		if err != nil {
			s.logOrphans("replace rejected after upload", ids, err)
			return zero, err
		}
		if _, err := s.links.Replace(ctx, rec, retained, ids); err != nil {
			s.logOrphans("replace failed after upload", ids, err)
			return zero, err
		}
	} else if len(ids) > 0 {
		if _, err := s.links.Attach(ctx, rec, ids); err != nil {
			s.logOrphans("attach failed after upload", ids, err)
			return zero, err
		}
	}

	var scratch models.Vehicle
	updates := withoutKeys(fields, picIDsField, picIDsCamel)
	s.ignoreUnknown(scratch.ApplyFields(updates))
	updates = knownVehicleFields(updates)
	if len(updates) > 0 {
		if err := s.store.UpdateVehicleFields(ctx, id, updates); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return zero, failure.Wrap(failure.NotFound, failure.ReasonRecordNotFound, err, "%s", rec)
			}
			return zero, storeFailure(err)
		}
	}

	vehicle, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return zero, storeFailure(err)
	}
	if vehicle == nil {
		return zero, failure.New(failure.NotFound, failure.ReasonRecordNotFound, "%s", rec)
	}
	return *vehicle, nil
}

// Detach unlinks objectID from the record and deletes the object.
func (s *RecordService) Detach(ctx context.Context, rec models.RecordRef, objectID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.links.Detach(ctx, rec, strings.TrimSpace(objectID))
}

// DeleteVehicle removes the record. Its objects are left for reconciliation.
func (s *RecordService) DeleteVehicle(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.deleteRecord(models.VehicleRef(id), s.store.DeleteVehicle(ctx, id))
}

// DeleteAssetGroup removes the record. Its objects are left for reconciliation.
func (s *RecordService) DeleteAssetGroup(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.deleteRecord(models.AssetRef(id), s.store.DeleteAssetGroup(ctx, id))
}

func (s *RecordService) deleteRecord(rec models.RecordRef, err error) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return failure.Wrap(failure.NotFound, failure.ReasonRecordNotFound, err, "%s", rec)
	}
	if err != nil {
		return storeFailure(err)
	}
	s.logger.Info("record deleted", "record", rec.String())
	return nil
}

func (s *RecordService) ready() error {
	if s == nil || s.store == nil || s.pipeline == nil || s.links == nil {
		return internalError(fmt.Errorf("record service is not configured"))
	}
	return nil
}

// ensureRecord runs before any bytes are stored so a bad target does not
// leave orphans behind.
func (s *RecordService) ensureRecord(ctx context.Context, rec models.RecordRef) error {
	if !store.ValidRecordIDFor(rec.Kind, rec.ID) {
		return failure.New(failure.Validation, failure.ReasonInvalidRecordID, "invalid %s id %q", rec.Kind, rec.ID)
	}
	_, _, err := s.store.GetObjectIDs(ctx, rec)
	if errors.Is(err, store.ErrRecordNotFound) {
		return failure.Wrap(failure.NotFound, failure.ReasonRecordNotFound, err, "%s", rec)
	}
	if err != nil {
		return storeFailure(err)
	}
	return nil
}

func (s *RecordService) logOrphans(msg string, ids []string, err error) {
	if len(ids) == 0 {
		return
	}
	s.logger.Warn(msg, "object_ids", ids, "error", err)
}

func (s *RecordService) ignoreUnknown(names []string) {
	if len(names) > 0 {
		s.logger.Debug("ignoring unknown form fields", "fields", names)
	}
}

// retainedCheckSource validates a pic_ids field that arrives ahead of the
// files, so a bad retained list is rejected before any object is written.
type retainedCheckSource struct {
	FormSource
	checked bool
}

func (c *retainedCheckSource) Next() (upload.IncomingFile, error) {
	file, err := c.FormSource.Next()
	if err != nil || c.checked {
		return file, err
	}
	raw, ok := retainedField(c.Fields())
	if !ok {
		return file, nil
	}
	c.checked = true
	if _, err := parseRetainedIDs(raw); err != nil {
		return upload.IncomingFile{}, err
	}
	return file, nil
}

// retainedField returns the retained id list, preferring pic_ids over the
// camelCase picIds.
func retainedField(fields map[string]string) (string, bool) {
	if raw, ok := fields[picIDsField]; ok {
		return raw, true
	}
	raw, ok := fields[picIDsCamel]
	return raw, ok
}

// parseRetainedIDs accepts a JSON array or a comma-separated list and
// rejects malformed or repeated object ids.
func parseRetainedIDs(raw string) ([]string, error) {
	ids, err := splitRetainedIDs(raw)
	if err != nil {
		return nil, err
	}
	if err := links.CheckObjectIDs(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func splitRetainedIDs(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}
	if strings.HasPrefix(raw, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, badRequestCode(failure.Wrap(failure.Validation, failure.ReasonMalformedUpload, err, "invalid pic_ids"), ErrCodeInvalidRetention)
		}
		return trimAll(ids), nil
	}
	return trimAll(strings.Split(raw, ",")), nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func withoutKeys(fields map[string]string, keys ...string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

func knownVehicleFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, name := range models.VehicleFieldNames {
		if value, ok := fields[name]; ok {
			out[name] = value
		}
	}
	return out
}

func unknownKeys(fields map[string]string, known ...string) []string {
	var out []string
	for k := range fields {
		found := false
		for _, name := range known {
			if k == name {
				found = true
				break
			}
		}
		if !found {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
