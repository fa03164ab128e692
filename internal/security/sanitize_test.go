package security

import "testing"

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		wantErr bool
	}{
		{"main branch", "main", false},
		{"master branch", "master", false},
		{"feature branch", "feature/new-feature", false},
		{"release branch", "release/v1.0.0", false},
		{"with underscores", "my_feature_branch", false},

		{"empty branch", "", true},
		{"starts with dash", "-malicious", true},
		{"full ref", "refs/heads/main", true},
		{"command injection semicolon", "main; rm -rf /", true},
		{"command injection dollar", "main$(whoami)", true},
		{"spaces", "my branch", true},
		{"newline", "main\nmalicious", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBranchName(tt.branch)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBranchName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOwnerRepo(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"simple", "landon/loans", "landon", "loans", false},
		{"repo with dots", "octo-org/my.repo_name", "octo-org", "my.repo_name", false},

		{"missing repo", "landon", "", "", true},
		{"too many parts", "a/b/c", "", "", true},
		{"empty owner", "/loans", "", "", true},
		{"dot repo", "landon/..", "", "", true},
		{"url", "https://github.com/landon/loans", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ValidateOwnerRepo(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateOwnerRepo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("ValidateOwnerRepo() = %q, %q, want %q, %q", owner, repo, tt.wantOwner, tt.wantRepo)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"absolute path", "/opt/fivem/scripts/update-hook.sh", "/opt/fivem/scripts/update-hook.sh", false},
		{"absolute path with ./ elements", "/opt/./scripts/update.sh", "/opt/scripts/update.sh", false},

		{"relative path", "scripts/update.sh", "", true},
		{"relative path with dot", "./update.sh", "", true},
		{"path traversal", "/opt/../../etc/passwd", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizePath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("SanitizePath() = %v, want %v", got, tt.want)
			}
		})
	}
}
