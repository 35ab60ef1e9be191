package database

// schema lists the tables in dependency order.  Only the columns that
// authorization, caching and auditing rely on are modelled.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                 CHAR(36)     NOT NULL PRIMARY KEY,
		name               VARCHAR(255) NOT NULL,
		email              VARCHAR(255) NOT NULL UNIQUE,
		password_hash      VARCHAR(255) NOT NULL,
		verified           BOOLEAN      NOT NULL DEFAULT FALSE,
		status             ENUM('ACTIVE','INACTIVE','SUSPENDED') NOT NULL DEFAULT 'ACTIVE',
		refresh_token_hash CHAR(64)     NULL,
		created_at         DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at         DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS otps (
		email      VARCHAR(255) NOT NULL PRIMARY KEY,
		code_hash  CHAR(64)     NOT NULL,
		attempts   INT          NOT NULL DEFAULT 0,
		expires_at DATETIME     NOT NULL,
		created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS projects (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		description TEXT         NULL,
		visibility  ENUM('PUBLIC','PRIVATE') NOT NULL DEFAULT 'PUBLIC',
		owner_id    CHAR(36)     NOT NULL,
		is_deleted  BOOLEAN      NOT NULL DEFAULT FALSE,
		deleted_at  DATETIME     NULL,
		created_at  DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_projects_owner (owner_id),
		CONSTRAINT fk_projects_owner FOREIGN KEY (owner_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS project_members (
		id         CHAR(36) NOT NULL PRIMARY KEY,
		user_id    CHAR(36) NOT NULL,
		project_id CHAR(36) NOT NULL,
		role       ENUM('ADMIN','PROJECT_MANAGER','LEAD','MEMBER','USER') NOT NULL DEFAULT 'USER',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uk_member_user_project (user_id, project_id),
		KEY idx_members_project (project_id),
		CONSTRAINT fk_members_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT fk_members_project FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id             CHAR(36)     NOT NULL PRIMARY KEY,
		project_id     CHAR(36)     NOT NULL,
		title          VARCHAR(255) NOT NULL,
		description    TEXT         NULL,
		status         ENUM('TODO','IN_PROGRESS','DONE','BACKLOG','CAN_SOLVE') NOT NULL DEFAULT 'TODO',
		priority       ENUM('LOW','MEDIUM','HIGH') NOT NULL DEFAULT 'MEDIUM',
		assigned_to_id CHAR(36)     NULL,
		due_date       DATETIME     NULL,
		is_deleted     BOOLEAN      NOT NULL DEFAULT FALSE,
		deleted_at     DATETIME     NULL,
		created_at     DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_tasks_project (project_id, is_deleted),
		KEY idx_tasks_assignee (assigned_to_id, is_deleted),
		CONSTRAINT fk_tasks_project FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
		CONSTRAINT fk_tasks_assignee FOREIGN KEY (assigned_to_id) REFERENCES users(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS activity_logs (
		id         CHAR(36) NOT NULL PRIMARY KEY,
		project_id CHAR(36) NOT NULL,
		user_id    CHAR(36) NOT NULL,
		action     VARCHAR(64) NOT NULL,
		details    TEXT     NOT NULL,
		created_at DATETIME(3) NOT NULL,
		KEY idx_activity_project_created (project_id, created_at),
		KEY idx_activity_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
