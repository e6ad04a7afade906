package container

import (
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/redwren/redwrenlib/errors"
	"github.com/redwren/redwrenlib/model"
)

// Bucket and leaf names. Field names inside a component-set record are part
// of the wire contract and never change across schema generations.
var (
	bucketMeta    = []byte("meta")
	bucketSensors = []byte("sensors")

	keyVersion           = []byte("version")
	keyWeights           = []byte("weights")
	keyMeans             = []byte("means")
	keyCovariances       = []byte("covariances")
	keyPrecisionCholesky = []byte("precision_cholesky")
	keyNComponents       = []byte("n_components")
	keyRandomState       = []byte("random_state")
	keyThreshold         = []byte("threshold")
)

// modelKey names the i-th component-set sub-record of a sensor group.
// Records are addressed by constructed index, never by lexicographic
// iteration, so counts past model_9 stay ordered.
func modelKey(i int) []byte {
	return []byte(fmt.Sprintf("model_%d", i))
}

const openTimeout = time.Second

// Create writes a fresh container holding only the version header,
// truncating any existing file at path. For V1 the global parameter block is
// stamped alongside the header, matching the original format where a newly
// created file already carried defaults.
func Create(path string, v Version, defaults model.Parameters) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO(err, "container", "Create", "truncate existing file")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return errors.WrapIO(err, "container", "Create", "open container")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		tag, err := v.encodeTag()
		if err != nil {
			return err
		}
		if err := meta.Put(keyVersion, tag); err != nil {
			return err
		}
		if v == V1 {
			return putParameters(meta, defaults)
		}
		return nil
	})
	if err != nil {
		if errors.IsUnsupportedVersion(err) {
			return err
		}
		return errors.WrapIO(err, "container", "Create", "write version header")
	}
	return nil
}

// Write commits a model store to the container at path under schema version
// v. With override the file is recreated from scratch; otherwise new
// component sets merge into existing sensor groups, numbered from each
// group's current count so prior records are never overwritten, and scalar
// parameters are upserted. globals is the parameter block stamped for V1.
//
// The whole write is one transaction: a failure rolls back and cannot leave
// a container missing its version header.
func Write(path string, v Version, models map[string]*model.SensorModelEntry, override bool, globals model.Parameters) error {
	if override {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.WrapIO(err, "container", "Write", "truncate existing file")
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return errors.WrapIO(err, "container", "Write", "open container")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}

		// Adopt-or-stamp the header. Appending under a different schema
		// generation than the file carries is refused, not coerced.
		if raw := meta.Get(keyVersion); raw != nil {
			found, err := parseTag(raw)
			if err != nil {
				return err
			}
			if found != v {
				return errors.New(errors.KindUnsupportedVersion, "container", "Write",
					fmt.Sprintf("container is version %s, writer configured for %s", found, v))
			}
		} else {
			tag, err := v.encodeTag()
			if err != nil {
				return err
			}
			if err := meta.Put(keyVersion, tag); err != nil {
				return err
			}
		}

		if v == V1 {
			if err := putParameters(meta, globals); err != nil {
				return err
			}
		}

		sensors, err := tx.CreateBucketIfNotExists(bucketSensors)
		if err != nil {
			return err
		}

		for label, entry := range models {
			group, err := sensors.CreateBucketIfNotExists([]byte(label))
			if err != nil {
				return err
			}
			if v == V2 {
				if err := putParameters(group, entry.Params); err != nil {
					return err
				}
			}
			base := countModels(group)
			for i, set := range entry.Sets {
				rec, err := group.CreateBucket(modelKey(base + i))
				if err != nil {
					return err
				}
				if err := putComponentSet(rec, set); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if _, ok := errors.KindOf(err); ok {
			return err
		}
		return errors.WrapIO(err, "container", "Write", "commit container")
	}
	return nil
}

// Read loads the container at path. The version leaf is read first and the
// remainder of the file is decoded by the matching schema codec. For V1 the
// returned parameters are the global block, already folded into every
// sensor entry; for V2 they are the zero value and each entry carries its
// own block.
func Read(path string) (Version, model.Parameters, map[string]*model.SensorModelEntry, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, model.Parameters{}, nil, errors.WrapIO(err, "container", "Read", "stat container")
	}

	db, err := bolt.Open(path, 0o400, &bolt.Options{Timeout: openTimeout, ReadOnly: true})
	if err != nil {
		return 0, model.Parameters{}, nil, errors.WrapCorrupt(err, "container", "Read", "open container")
	}
	defer db.Close()

	var (
		version Version
		globals model.Parameters
		models  map[string]*model.SensorModelEntry
	)
	err = db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return errors.New(errors.KindCorruptContainer, "container", "Read",
				"missing meta group")
		}
		raw := meta.Get(keyVersion)
		if raw == nil {
			return errors.New(errors.KindCorruptContainer, "container", "Read",
				"missing version field")
		}
		v, err := parseTag(raw)
		if err != nil {
			return err
		}
		version = v

		switch v {
		case V1:
			globals, models, err = decodeV1(tx)
		case V2:
			models, err = decodeV2(tx)
		}
		return err
	})
	if err != nil {
		return 0, model.Parameters{}, nil, err
	}
	return version, globals, models, nil
}

// decodeV1 reads the original schema: one global parameter block in the meta
// group, applied uniformly to every sensor entry.
func decodeV1(tx *bolt.Tx) (model.Parameters, map[string]*model.SensorModelEntry, error) {
	meta := tx.Bucket(bucketMeta)
	globals, err := getParameters(meta, "meta")
	if err != nil {
		return model.Parameters{}, nil, err
	}

	models := make(map[string]*model.SensorModelEntry)
	err = forEachSensor(tx, func(label string, group *bolt.Bucket) error {
		sets, err := readComponentSets(group, label)
		if err != nil {
			return err
		}
		models[label] = &model.SensorModelEntry{Sets: sets, Params: globals}
		return nil
	})
	if err != nil {
		return model.Parameters{}, nil, err
	}
	return globals, models, nil
}

// decodeV2 reads the current schema: each sensor group owns its parameter
// block alongside its component-set records.
func decodeV2(tx *bolt.Tx) (map[string]*model.SensorModelEntry, error) {
	models := make(map[string]*model.SensorModelEntry)
	err := forEachSensor(tx, func(label string, group *bolt.Bucket) error {
		params, err := getParameters(group, label)
		if err != nil {
			return err
		}
		sets, err := readComponentSets(group, label)
		if err != nil {
			return err
		}
		models[label] = &model.SensorModelEntry{Sets: sets, Params: params}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}

func forEachSensor(tx *bolt.Tx, fn func(label string, group *bolt.Bucket) error) error {
	sensors := tx.Bucket(bucketSensors)
	if sensors == nil {
		return nil // freshly created container, header only
	}
	return sensors.ForEach(func(k, v []byte) error {
		if v != nil {
			return errors.New(errors.KindCorruptContainer, "container", "Read",
				fmt.Sprintf("unexpected leaf %q in sensors group", k))
		}
		return fn(string(k), sensors.Bucket(k))
	})
}

// countModels returns the number of component-set sub-records in a sensor
// group, which is also the next append index.
func countModels(group *bolt.Bucket) int {
	n := 0
	for group.Bucket(modelKey(n)) != nil {
		n++
	}
	return n
}

func readComponentSets(group *bolt.Bucket, label string) ([]*model.GaussianComponentSet, error) {
	count := countModels(group)
	sets := make([]*model.GaussianComponentSet, 0, count)
	for i := 0; i < count; i++ {
		rec := group.Bucket(modelKey(i))
		set, err := readComponentSet(rec, label, i)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func readComponentSet(rec *bolt.Bucket, label string, idx int) (*model.GaussianComponentSet, error) {
	at := func(field []byte) string {
		return fmt.Sprintf("sensor %q model_%d field %q", label, idx, field)
	}

	var (
		weights     []float64
		means       [][]float64
		covariances [][][]float64
		cholesky    [][][]float64
		nComponents int
	)
	fields := []struct {
		key []byte
		dst any
	}{
		{keyWeights, &weights},
		{keyMeans, &means},
		{keyCovariances, &covariances},
		{keyPrecisionCholesky, &cholesky},
		{keyNComponents, &nComponents},
	}
	for _, f := range fields {
		raw := rec.Get(f.key)
		if raw == nil {
			return nil, errors.New(errors.KindCorruptContainer, "container", "Read",
				"missing "+at(f.key))
		}
		if err := msgpack.Unmarshal(raw, f.dst); err != nil {
			return nil, errors.WrapCorrupt(err, "container", "Read", "decode "+at(f.key))
		}
	}

	set, err := model.NewComponentSet(nComponents, weights, means, covariances, cholesky)
	if err != nil {
		return nil, errors.WrapCorrupt(err, "container", "Read",
			fmt.Sprintf("validate sensor %q model_%d", label, idx))
	}
	return set, nil
}

func putComponentSet(rec *bolt.Bucket, set *model.GaussianComponentSet) error {
	fields := []struct {
		key []byte
		val any
	}{
		{keyWeights, set.Weights},
		{keyMeans, set.MeansRows()},
		{keyCovariances, set.CovarianceRows()},
		{keyPrecisionCholesky, set.PrecisionCholeskyRows()},
		{keyNComponents, set.NComponents},
	}
	for _, f := range fields {
		raw, err := msgpack.Marshal(f.val)
		if err != nil {
			return err
		}
		if err := rec.Put(f.key, raw); err != nil {
			return err
		}
	}
	return nil
}

// putParameters upserts a scalar parameter block into a group: values are
// overwritten in place when present, created otherwise.
func putParameters(b *bolt.Bucket, p model.Parameters) error {
	fields := []struct {
		key []byte
		val any
	}{
		{keyNComponents, p.NComponents},
		{keyRandomState, p.RandomState},
		{keyThreshold, p.Threshold},
	}
	for _, f := range fields {
		raw, err := msgpack.Marshal(f.val)
		if err != nil {
			return err
		}
		if err := b.Put(f.key, raw); err != nil {
			return err
		}
	}
	return nil
}

func getParameters(b *bolt.Bucket, where string) (model.Parameters, error) {
	var p model.Parameters
	fields := []struct {
		key []byte
		dst any
	}{
		{keyNComponents, &p.NComponents},
		{keyRandomState, &p.RandomState},
		{keyThreshold, &p.Threshold},
	}
	for _, f := range fields {
		raw := b.Get(f.key)
		if raw == nil {
			return model.Parameters{}, errors.New(errors.KindCorruptContainer, "container", "Read",
				fmt.Sprintf("missing field %q in %s", f.key, where))
		}
		if err := msgpack.Unmarshal(raw, f.dst); err != nil {
			return model.Parameters{}, errors.WrapCorrupt(err, "container", "Read",
				fmt.Sprintf("decode field %q in %s", f.key, where))
		}
	}
	return p, nil
}
