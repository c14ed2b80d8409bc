package bench

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/PolarWolf314/inkseal/internal/configs"
	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/identity"
	logger "github.com/PolarWolf314/inkseal/internal/logging"
	"github.com/PolarWolf314/inkseal/internal/records"
	"github.com/PolarWolf314/inkseal/internal/revocation"
	"github.com/PolarWolf314/inkseal/internal/secrets"
)

// Operation names used as the "operation" label.
const (
	OpKeygen           = "keygen"
	OpIssueCertificate = "issue_certificate"
	OpSaveKeystore     = "save_keystore"
	OpLoadKeystore     = "load_keystore"
	OpSign             = "sign"
	OpVerify           = "verify"
	OpEncrypt          = "encrypt"
	OpDecrypt          = "decrypt"
	OpEncryptAndSign   = "encrypt_and_sign"
	OpVerifyAndDecrypt = "verify_and_decrypt"
	OpExportCert       = "export_certificate"
	OpSaveRecord       = "save_record"
	OpLoadRecord       = "load_record"
)

const (
	benchPassword = "inkseal-bench"
	combinedKB    = 10
)

var signSample = []byte("Hello, this is a test message for signing.")

// DefaultSizes are the payload sizes in KiB used when Options.Sizes is empty.
var DefaultSizes = []int{1, 10, 100, 500}

// Options configures a benchmark run.
type Options struct {
	// Sizes lists payload sizes in KiB for encrypt and decrypt.
	Sizes []int

	// Repeats is how many times each operation is timed. Key generation always
	// runs once.
	Repeats int

	// Bits is the RSA key size. Zero uses 2048.
	Bits int

	// KDFIterations is the keystore PBKDF2 count. Zero uses the minimum.
	KDFIterations int

	Logger logger.Logger
}

// Result is the timing summary of one operation at one payload size.
type Result struct {
	Operation string
	// SizeKB is zero for operations that do not depend on payload size.
	SizeKB int
	Count  uint64
	Mean   time.Duration
}

// Report lists results in the order the operations ran.
type Report struct {
	Bits          int
	KDFIterations int
	Results       []Result
}

type key struct {
	op   string
	size int
}

type runner struct {
	ctx       context.Context
	repeats   int
	summaries *prometheus.SummaryVec
	order     []key
	log       logger.Logger
}

// Run times each operation and returns the gathered report.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Repeats <= 0 {
		opts.Repeats = 5
	}
	if len(opts.Sizes) == 0 {
		opts.Sizes = DefaultSizes
	}
	if opts.Bits == 0 {
		opts.Bits = configs.AbsoluteMinKeyBits
	}
	if opts.KDFIterations == 0 {
		opts.KDFIterations = configs.MinKDFIterations
	}
	for _, size := range opts.Sizes {
		if size <= 0 {
			return nil, fmt.Errorf("%w: payload size %d KiB", kerrors.ErrPrecondition, size)
		}
	}

	dir, err := os.MkdirTemp("", "inkseal-bench-")
	if err != nil {
		return nil, fmt.Errorf("failed to create benchmark directory: %w", err)
	}
	defer os.RemoveAll(dir)
	opts.Logger.Debugf("Benchmarking in %s", dir)

	summaries := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  "inkseal",
		Subsystem:  "bench",
		Name:       "operation_duration_seconds",
		Help:       "Duration of inkseal cryptographic operations.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"operation", "size_kb"})
	registry := prometheus.NewRegistry()
	if err := registry.Register(summaries); err != nil {
		return nil, fmt.Errorf("failed to register benchmark metrics: %w", err)
	}

	r := &runner{ctx: ctx, repeats: opts.Repeats, summaries: summaries, log: opts.Logger}
	if err := r.run(dir, opts); err != nil {
		return nil, err
	}

	families, err := registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather benchmark metrics: %w", err)
	}
	return &Report{
		Bits:          opts.Bits,
		KDFIterations: opts.KDFIterations,
		Results:       r.collect(families),
	}, nil
}

func (r *runner) run(dir string, opts Options) error {
	keys := identity.NewKeyManager(dir, revocation.NewMemoryRegistry(),
		identity.WithKDFIterations(opts.KDFIterations),
		identity.WithLogger(opts.Logger),
	)

	if err := r.timeOnce(OpKeygen, 0, func() error {
		return keys.GenerateKeyPair(r.ctx, opts.Bits)
	}); err != nil {
		return err
	}
	if err := r.time(OpIssueCertificate, 0, func() error {
		_, err := keys.IssueSelfSignedCertificate("bench", 1)
		return err
	}); err != nil {
		return err
	}
	if err := r.time(OpSaveKeystore, 0, func() error {
		return keys.SaveKeystore(r.ctx, benchPassword)
	}); err != nil {
		return err
	}
	if err := r.time(OpLoadKeystore, 0, func() error {
		return keys.LoadKeystore(r.ctx, benchPassword)
	}); err != nil {
		return err
	}

	crypto := secrets.NewCryptoManager(keys, secrets.WithLogger(opts.Logger))

	var sig *secrets.SignatureInfo
	if err := r.time(OpSign, 0, func() (err error) {
		sig, err = crypto.Sign(signSample)
		return err
	}); err != nil {
		return err
	}
	if err := r.time(OpVerify, 0, func() error {
		if !crypto.Verify(r.ctx, signSample, sig.Signature, sig.SignedTimestamp, sig.CertSerial, nil).Valid {
			return kerrors.ErrInvalidSignature
		}
		return nil
	}); err != nil {
		return err
	}

	for _, size := range opts.Sizes {
		plaintext := payload(size)
		var env *secrets.Envelope
		if err := r.time(OpEncrypt, size, func() (err error) {
			env, err = crypto.Encrypt(plaintext)
			return err
		}); err != nil {
			return err
		}
		if err := r.time(OpDecrypt, size, func() error {
			_, err := crypto.Decrypt(env)
			return err
		}); err != nil {
			return err
		}
	}

	plaintext := payload(combinedKB)
	var signed *secrets.Envelope
	if err := r.time(OpEncryptAndSign, combinedKB, func() (err error) {
		signed, err = crypto.EncryptAndSign(plaintext)
		return err
	}); err != nil {
		return err
	}
	if err := r.time(OpVerifyAndDecrypt, combinedKB, func() error {
		_, verdict, err := crypto.VerifyAndDecrypt(r.ctx, signed)
		if err == nil && !verdict.Valid {
			err = kerrors.ErrInvalidSignature
		}
		return err
	}); err != nil {
		return err
	}

	if err := r.time(OpExportCert, 0, func() error {
		_, err := keys.ExportCertificatePEM()
		return err
	}); err != nil {
		return err
	}

	store := records.NewStore(filepath.Join(dir, configs.RecordsDirName))
	sample, err := crypto.Encrypt(payload(1))
	if err != nil {
		return err
	}
	var id string
	if err := r.time(OpSaveRecord, 1, func() (err error) {
		id, err = store.Save("bench", sample, nil)
		return err
	}); err != nil {
		return err
	}
	return r.time(OpLoadRecord, 1, func() error {
		_, _, err := store.Load(id)
		return err
	})
}

func (r *runner) timeOnce(op string, size int, fn func() error) error {
	return r.observe(op, size, 1, fn)
}

func (r *runner) time(op string, size int, fn func() error) error {
	return r.observe(op, size, r.repeats, fn)
}

func (r *runner) observe(op string, size, repeats int, fn func() error) error {
	observer := r.summaries.WithLabelValues(op, strconv.Itoa(size))
	r.order = append(r.order, key{op, size})
	for i := 0; i < repeats; i++ {
		if err := r.ctx.Err(); err != nil {
			return fmt.Errorf("%w: benchmark: %v", kerrors.ErrAborted, err)
		}
		start := time.Now()
		if err := fn(); err != nil {
			return fmt.Errorf("benchmark %s failed: %w", op, err)
		}
		observer.Observe(time.Since(start).Seconds())
	}
	r.log.Debugf("Timed %s (%d KiB) x%d", op, size, repeats)
	return nil
}

func (r *runner) collect(families []*dto.MetricFamily) []Result {
	found := make(map[key]Result)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			size, _ := strconv.Atoi(labelValue(metric, "size_kb"))
			k := key{labelValue(metric, "operation"), size}
			summary := metric.GetSummary()
			result := Result{Operation: k.op, SizeKB: k.size, Count: summary.GetSampleCount()}
			if result.Count > 0 {
				mean := summary.GetSampleSum() / float64(result.Count)
				result.Mean = time.Duration(mean * float64(time.Second))
			}
			found[k] = result
		}
	}

	results := make([]Result, 0, len(r.order))
	for _, k := range r.order {
		if result, ok := found[k]; ok {
			results = append(results, result)
		}
	}
	return results
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

func payload(sizeKB int) []byte {
	return bytes.Repeat([]byte("x"), sizeKB*1024)
}
