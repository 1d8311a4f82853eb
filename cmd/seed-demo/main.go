package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/lexamine/lexam-backend/internal/config"
	"github.com/lexamine/lexam-backend/internal/database"
	"github.com/lexamine/lexam-backend/internal/logger"
	"github.com/lexamine/lexam-backend/internal/model"
	"github.com/lexamine/lexam-backend/internal/repository"
)

// Seeds a runnable demo: 20 candidate accounts, one paper group with two
// variants of six items each, and a released batch starting in one hour.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)

	fmt.Println("=== Seeding 20 candidate accounts ===")

	names := []string{
		"Alice Morgan", "Ben Carter", "Chloe Reyes", "Daniel Kim", "Elena Novak",
		"Frank Osei", "Grace Lin", "Hassan Ali", "Iris Tanaka", "Jonas Weber",
		"Karen Silva", "Liam Byrne", "Mona Farah", "Noah Fischer", "Olga Petrova",
		"Pablo Ruiz", "Quinn Harper", "Rosa Mendes", "Sam Turner", "Tara Singh",
	}

	created := 0
	for i, name := range names {
		idNo := fmt.Sprintf("4401%08d", i+1)
		hash, err := bcrypt.GenerateFromPassword([]byte(idNo[len(idNo)-6:]), cfg.BcryptCost)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hash password")
		}
		user := &model.AccountUser{
			Name:         name,
			OrgName:      "Demo Agency",
			IDNo:         idNo,
			Phone:        fmt.Sprintf("555%07d", i+1),
			PasswordHash: string(hash),
		}
		if err := userRepo.Create(ctx, user); err != nil {
			fmt.Printf("Skipping %s (%s): %v\n", name, idNo, err)
			continue
		}
		created++
	}
	fmt.Printf("Created %d/20 candidates (password = last 6 digits of ID number)\n", created)

	fmt.Println("=== Seeding paper group with 2 variants ===")

	var groupID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO paper_groups (group_title, papers_count, total_score)
		 VALUES ('Demo Knowledge Exam', 2, 100) RETURNING id`,
	).Scan(&groupID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create paper group")
	}

	for no := int32(1); no <= 2; no++ {
		if err := seedVariant(ctx, pool, groupID, no); err != nil {
			log.Fatal().Err(err).Int32("papers_no", no).Msg("Failed to seed variant")
		}
	}

	fmt.Println("=== Seeding exam batch ===")

	start := time.Now().Add(1 * time.Hour).Truncate(time.Minute)
	end := start.Add(2 * time.Hour)
	var batchID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO exam_batches
		 (batch_name, start_time, end_time, prepare_minutes, papers_group_id,
		  self_join, review_required, released, papers_distributed)
		 VALUES ('Demo Batch', $1, $2, 15, $3, TRUE, FALSE, TRUE, FALSE)
		 RETURNING id`,
		start, end, groupID,
	).Scan(&batchID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create batch")
	}

	fmt.Printf("\nSeed completed! Group %d, batch %d (starts %s)\n", groupID, batchID, start.Format(time.RFC3339))
	fmt.Println("Toggle distribution via the admin API once joining closes.")
}

type seedItem struct {
	typeID   int
	typeName string
	content  string
	score    float64
	options  []seedOption
}

type seedOption struct {
	no      int32
	title   string
	correct bool
}

func seedVariant(ctx context.Context, pool *pgxpool.Pool, groupID int64, papersNo int32) error {
	items := demoItems(papersNo)

	var total float64
	for _, it := range items {
		total += it.score
	}

	var papersID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO papers (group_id, title, papers_no, total_score)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		groupID, fmt.Sprintf("Demo Knowledge Exam (Variant %d)", papersNo), papersNo, total,
	).Scan(&papersID)
	if err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}

	structScores := map[string]float64{}
	for sort, it := range items {
		var itemID int64
		err := pool.QueryRow(ctx,
			`INSERT INTO item_bank (type_id, type_name, content)
			 VALUES ($1, $2, $3) RETURNING id`,
			it.typeID, it.typeName, it.content,
		).Scan(&itemID)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		for _, op := range it.options {
			var optID int64
			err := pool.QueryRow(ctx,
				`INSERT INTO item_options (item_id, option_no, option_title, is_correct)
				 VALUES ($1, $2, $3, $4) RETURNING id`,
				itemID, op.no, op.title, op.correct,
			).Scan(&optID)
			if err != nil {
				return fmt.Errorf("insert option: %w", err)
			}
		}
		var pcID int64
		err = pool.QueryRow(ctx,
			`INSERT INTO paper_contents (papers_id, item_id, score, sort_order)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			papersID, itemID, it.score, sort+1,
		).Scan(&pcID)
		if err != nil {
			return fmt.Errorf("insert content: %w", err)
		}
		structScores[it.typeName] += it.score
	}

	for typeName, score := range structScores {
		var sID int64
		err := pool.QueryRow(ctx,
			`INSERT INTO paper_structs (papers_id, type_name, score)
			 VALUES ($1, $2, $3) RETURNING id`,
			papersID, typeName, score,
		).Scan(&sID)
		if err != nil {
			return fmt.Errorf("insert struct: %w", err)
		}
	}
	return nil
}

func demoItems(papersNo int32) []seedItem {
	suffix := fmt.Sprintf(" (variant %d)", papersNo)
	return []seedItem{
		{1, "Single Choice", "A river's riparian zone is best described as" + suffix, 20, []seedOption{
			{1, "The land alongside its banks", true},
			{2, "Its deepest channel", false},
			{3, "Its seasonal floodplain only", false},
			{4, "The watershed divide", false},
		}},
		{1, "Single Choice", "Which permit governs surface water withdrawal" + suffix, 20, []seedOption{
			{1, "Construction permit", false},
			{2, "Abstraction licence", true},
			{3, "Discharge consent", false},
			{4, "Navigation pass", false},
		}},
		{2, "Multiple Choice", "Which of the following count as non-point pollution sources" + suffix, 20, []seedOption{
			{1, "Agricultural runoff", true},
			{2, "A factory outfall pipe", false},
			{3, "Urban stormwater", true},
			{4, "A sewage treatment plant", false},
		}},
		{2, "Multiple Choice", "Which measures reduce flood risk" + suffix, 20, []seedOption{
			{1, "Levee maintenance", true},
			{2, "Wetland restoration", true},
			{3, "Channel dredging without assessment", false},
			{4, "Floodplain construction", false},
		}},
		{3, "True or False", "Groundwater and surface water are always managed separately" + suffix, 10, []seedOption{
			{1, "True", false},
			{2, "False", true},
		}},
		{3, "True or False", "A water right can lapse when unused beyond the statutory period" + suffix, 10, []seedOption{
			{1, "True", true},
			{2, "False", false},
		}},
	}
}
