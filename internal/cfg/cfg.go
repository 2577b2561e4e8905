package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/jimlawless/whereami"
)

const (
	ArtifactSourceFile  = "file"
	ArtifactSourceMinio = "minio"

	OOVPolicyPlaceholder = "placeholder"
	OOVPolicyReject      = "reject"
)

type Config struct {
	Http      *HTTPConfig
	Grpc      *GRPCConfig
	Db        *PGDBCfg
	Redis     *RedisCfg
	Minio     *MinIOCfg
	Qdrant    *QdrantCfg
	Kafka     *KafkaCfg
	Artifact  *ArtifactCfg
	Recommend *RecommendCfg
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

// PGDBCfg - реестр версий артефактов. Отключён, если POSTGRES_DB не задан.
type PGDBCfg struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisCfg struct {
	Enabled           bool
	Addr              string
	Password          string
	User              string
	DB                int
	MaxRetries        int
	DialTimeout       time.Duration
	Timeout           time.Duration
	RecommendationTTL time.Duration
}

type MinIOCfg struct {
	Enabled           bool
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Бакет с артефактами модели
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	Prefix            string // Префикс ключей артефактов внутри бакета
	UploadLimit       int    // Лимит одновременных загрузок при публикации
}

type QdrantCfg struct {
	Enabled              bool
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string
	UseTLS               bool
	BatchSize            int
}

type KafkaCfg struct {
	Enabled           bool
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
	ConsumerGroup     string
}

type ArtifactCfg struct {
	Source      string // file | minio
	Dir         string // корень для file-хранилища
	ManifestKey string // ключ манифеста по умолчанию
	LoadTimeout time.Duration
}

type RecommendCfg struct {
	DefaultCount int // num_recommendations по умолчанию
	DefaultTopK  int // top_k по умолчанию
	MaxCount     int
	OOVPolicy    string
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	artifact, err := loadArtifactCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log, artifact.Source == ArtifactSourceMinio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	recommend, err := loadRecommendCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:      http,
		Grpc:      loadGRPCConfig(),
		Db:        db,
		Redis:     redis,
		Minio:     minio,
		Qdrant:    qdrant,
		Kafka:     kafka,
		Artifact:  artifact,
		Recommend: recommend,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 10 * time.Second
		defaultIdleTimeout  = 60 * time.Second
		defaultCORSOrigins  = "*"
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		CORSOrigins:  splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", defaultCORSOrigins)),
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		return &PGDBCfg{Enabled: false}, nil
	}

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := e.Wrap("POSTGRES_USER", e.ErrMissingEnvVariable)
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := e.Wrap("POSTGRES_PASSWORD", e.ErrMissingEnvVariable)
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	return &PGDBCfg{
		Enabled:  true,
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultDB                = 0
		defaultMaxRetries        = 3
		defaultDialTimeout       = 5 * time.Second
		defaultReadTimeout       = 3 * time.Second
		defaultWriteTimeout      = 3 * time.Second
		defaultRecommendationTTL = 5 * time.Minute
	)

	addr := getEnv("REDIS_ADDR")
	if addr == "" {
		return &RedisCfg{Enabled: false}, nil
	}

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	ttl, err := parseDurationEnv("RECOMMENDATION_TTL", defaultRecommendationTTL)
	if err != nil {
		log.Errorf(err, "invalid RECOMMENDATION_TTL")
		return nil, err
	}

	return &RedisCfg{
		Enabled:           true,
		Addr:              addr,
		Password:          getEnv("REDIS_PASSWORD"),
		User:              getEnv("REDIS_USER"),
		DB:                db,
		MaxRetries:        maxRetries,
		DialTimeout:       dialTimeout,
		Timeout:           max(readTimeout, writeTimeout),
		RecommendationTTL: ttl,
	}, nil
}

func loadMinIOCfg(log logger.Logger, required bool) (*MinIOCfg, error) {
	const (
		defaultUseSSL      = false
		defaultEndpoint    = "minio:9000"
		defaultBucket      = "recommender-artifacts"
		defaultUploadLimit = 4
	)

	endpoint := getEnv("MINIO_ENDPOINT")
	if endpoint == "" && !required {
		return &MinIOCfg{Enabled: false}, nil
	}

	useSSL, err := parseBoolEnv("MINIO_USE_SSL", defaultUseSSL)
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	uploadLimit, err := parseIntEnv("MINIO_UPLOAD_LIMIT", defaultUploadLimit)
	if err != nil {
		log.Errorf(err, "invalid MINIO_UPLOAD_LIMIT")
		return nil, err
	}

	return &MinIOCfg{
		Enabled:           true,
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnvOrDefault("BUCKET_NAME", defaultBucket),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		Prefix:            strings.Trim(getEnv("ARTIFACT_PREFIX"), "/"),
		UploadLimit:       max(uploadLimit, 1),
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = 6334
		defaultUseTLS         = false
		defaultCollection     = "product_similarity"
		defaultBatchSize      = 256
	)

	host := getEnv("QDRANT_HOST")
	if host == "" {
		return &QdrantCfg{Enabled: false}, nil
	}

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := parseBoolEnv("QDRANT_USE_TLS", defaultUseTLS)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	batchSize, err := parseIntEnv("QDRANT_BATCH_SIZE", defaultBatchSize)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_BATCH_SIZE")
		return nil, err
	}

	return &QdrantCfg{
		Enabled:              true,
		Host:                 host,
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
		BatchSize:            max(batchSize, 1),
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultTopic             = "artifact-events"
		defaultPartitions        = 1
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultConsumerGroup     = "recommender"
	)

	brokerStr := getEnv("KAFKA_BROKERS")
	if brokerStr == "" {
		return &KafkaCfg{Enabled: false}, nil
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Enabled:           true,
		Brokers:           splitList(brokerStr),
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
		ConsumerGroup:     getEnvOrDefault("KAFKA_CONSUMER_GROUP", defaultConsumerGroup),
	}, nil
}

func loadArtifactCfg(log logger.Logger) (*ArtifactCfg, error) {
	const (
		defaultSource      = ArtifactSourceFile
		defaultDir         = "./artifacts"
		defaultManifestKey = "manifest.json"
		defaultLoadTimeout = 2 * time.Minute
	)

	source := strings.ToLower(getEnvOrDefault("ARTIFACT_SOURCE", defaultSource))
	if source != ArtifactSourceFile && source != ArtifactSourceMinio {
		err := fmt.Errorf("ARTIFACT_SOURCE %q: %w", source, e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid ARTIFACT_SOURCE")
		return nil, err
	}

	loadTimeout, err := parseDurationEnv("ARTIFACT_LOAD_TIMEOUT", defaultLoadTimeout)
	if err != nil {
		log.Errorf(err, "invalid ARTIFACT_LOAD_TIMEOUT")
		return nil, err
	}

	return &ArtifactCfg{
		Source:      source,
		Dir:         getEnvOrDefault("ARTIFACT_DIR", defaultDir),
		ManifestKey: getEnvOrDefault("ARTIFACT_MANIFEST_KEY", defaultManifestKey),
		LoadTimeout: loadTimeout,
	}, nil
}

func loadRecommendCfg(log logger.Logger) (*RecommendCfg, error) {
	const (
		defaultCount     = 10
		defaultTopK      = 3
		defaultMaxCount  = 1000
		defaultOOVPolicy = OOVPolicyPlaceholder
	)

	count, err := parseIntEnv("DEFAULT_NUM_RECOMMENDATIONS", defaultCount)
	if err != nil {
		log.Errorf(err, "invalid DEFAULT_NUM_RECOMMENDATIONS")
		return nil, err
	}

	topK, err := parseIntEnv("DEFAULT_TOP_K", defaultTopK)
	if err != nil {
		log.Errorf(err, "invalid DEFAULT_TOP_K")
		return nil, err
	}

	maxCount, err := parseIntEnv("MAX_RECOMMENDATIONS", defaultMaxCount)
	if err != nil {
		log.Errorf(err, "invalid MAX_RECOMMENDATIONS")
		return nil, err
	}

	policy := strings.ToLower(getEnvOrDefault("OOV_POLICY", defaultOOVPolicy))
	if policy != OOVPolicyPlaceholder && policy != OOVPolicyReject {
		err := fmt.Errorf("OOV_POLICY %q: %w", policy, e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid OOV_POLICY")
		return nil, err
	}

	if count <= 0 || topK <= 0 || maxCount <= 0 {
		err := fmt.Errorf("recommendation counts must be positive: %w", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid recommendation defaults")
		return nil, err
	}

	return &RecommendCfg{
		DefaultCount: count,
		DefaultTopK:  topK,
		MaxCount:     maxCount,
		OOVPolicy:    policy,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return intValue, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return b, nil
}

// splitList разбивает список через запятую, отбрасывая пустые элементы.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
