package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the tables in dependency order. Statements are idempotent so
// Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(80)  NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('admin','operator') NOT NULL DEFAULT 'operator',
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS airspaces (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(100) NOT NULL,
		number     VARCHAR(50)  NOT NULL,
		type       ENUM('suitable','restricted','no_fly') NOT NULL,
		area       JSON NOT NULL,
		remark     TEXT NULL,
		status     ENUM('available','occupied','unavailable') NOT NULL DEFAULT 'available',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_airspaces_number (number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS flight_applications (
		id                  BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id             BIGINT UNSIGNED NOT NULL,
		drone_model         VARCHAR(100) NOT NULL,
		task_purpose        TEXT NOT NULL,
		planned_airspace_id BIGINT UNSIGNED NOT NULL,
		planned_start_time  DATETIME NOT NULL,
		planned_end_time    DATETIME NOT NULL,
		total_time          INT NOT NULL,
		route               JSON NOT NULL,
		status              ENUM('draft','pending','approved','rejected','expired','launched') NOT NULL DEFAULT 'draft',
		is_long_term        TINYINT(1) NOT NULL DEFAULT 0,
		long_term_start     DATETIME NULL,
		long_term_end       DATETIME NULL,
		rejection_reason    TEXT NULL,
		created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_fa_user (user_id),
		KEY idx_fa_status_end (status, planned_end_time),
		CONSTRAINT fk_fa_user FOREIGN KEY (user_id) REFERENCES users(id),
		CONSTRAINT fk_fa_airspace FOREIGN KEY (planned_airspace_id) REFERENCES airspaces(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS airspace_usage (
		id                    BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		flight_application_id BIGINT UNSIGNED NOT NULL,
		airspace_id           BIGINT UNSIGNED NOT NULL,
		start_time            DATETIME NOT NULL,
		end_time              DATETIME NOT NULL,
		status                ENUM('applied','approved','active','released') NOT NULL DEFAULT 'applied',
		created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_usage_airspace (airspace_id, status, start_time, end_time),
		KEY idx_usage_app (flight_application_id),
		CONSTRAINT fk_usage_app FOREIGN KEY (flight_application_id) REFERENCES flight_applications(id) ON DELETE CASCADE,
		CONSTRAINT fk_usage_airspace FOREIGN KEY (airspace_id) REFERENCES airspaces(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS missions (
		id                    BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		flight_application_id BIGINT UNSIGNED NOT NULL,
		operator_id           BIGINT UNSIGNED NOT NULL,
		route                 JSON NOT NULL,
		start_time            DATETIME NOT NULL,
		end_time              DATETIME NULL,
		status                ENUM('executing','completed') NOT NULL DEFAULT 'executing',
		created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_mission_app (flight_application_id),
		KEY idx_mission_status_end (status, end_time),
		KEY idx_mission_operator (operator_id),
		CONSTRAINT fk_mission_app FOREIGN KEY (flight_application_id) REFERENCES flight_applications(id),
		CONSTRAINT fk_mission_operator FOREIGN KEY (operator_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS videos (
		id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		mission_id     BIGINT UNSIGNED NOT NULL,
		video_path     VARCHAR(255) NOT NULL,
		collected_time DATETIME NOT NULL,
		road_section   VARCHAR(100) NULL,
		file_format    ENUM('mp4','avi','mov','mkv') NOT NULL,
		file_size      BIGINT NULL,
		duration       INT NULL,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_videos_mission (mission_id),
		CONSTRAINT fk_videos_mission FOREIGN KEY (mission_id) REFERENCES missions(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS analysis_results (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		mission_id    BIGINT UNSIGNED NOT NULL,
		video_id      BIGINT UNSIGNED NOT NULL,
		target_type   VARCHAR(50) NOT NULL,
		occurred_time DATETIME NOT NULL,
		bounding_box  JSON NULL,
		confidence    DOUBLE NULL,
		result_image  VARCHAR(255) NULL,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_results_video (video_id),
		KEY idx_results_mission (mission_id),
		CONSTRAINT fk_results_mission FOREIGN KEY (mission_id) REFERENCES missions(id),
		CONSTRAINT fk_results_video FOREIGN KEY (video_id) REFERENCES videos(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS alert_events (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title         VARCHAR(200) NOT NULL,
		event_type    VARCHAR(50)  NOT NULL,
		severity      ENUM('low','medium','high') NOT NULL DEFAULT 'medium',
		road_section  VARCHAR(100) NULL,
		occurred_time DATETIME NOT NULL,
		video_id      BIGINT UNSIGNED NULL,
		mission_id    BIGINT UNSIGNED NULL,
		status        ENUM('new','confirmed','processing','closed') NOT NULL DEFAULT 'new',
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_alerts_status (status),
		KEY idx_alerts_occurred (occurred_time),
		CONSTRAINT fk_alerts_video FOREIGN KEY (video_id) REFERENCES videos(id),
		CONSTRAINT fk_alerts_mission FOREIGN KEY (mission_id) REFERENCES missions(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
