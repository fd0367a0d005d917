// Package wechat is a client for the WeChat official-account API: access
// tokens, follower and user lookup, customer-service messages and temporary
// media upload.
package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonny/chatbridge/pkg/apierror"
)

const DefaultBaseURL = "https://api.weixin.qq.com"

// batchGetLimit is the most open ids the user/info/batchget endpoint accepts.
const batchGetLimit = 100

// Platform error codes for an invalid or expired access token.
const (
	codeInvalidToken = 40001
	codeExpiredToken = 42001
)

type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Timeout   time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client

	tokenMu        sync.Mutex
	accessToken    string
	accessTokenExp time.Time
}

func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// --- WeChat API types ---

type baseResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (r baseResponse) err(op string) error {
	if r.ErrCode == 0 {
		return nil
	}
	return apierror.New("wechat", op, r.ErrCode, r.ErrMsg)
}

type tokenResponse struct {
	baseResponse
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type followersResponse struct {
	baseResponse
	Total int `json:"total"`
	Count int `json:"count"`
	Data  struct {
		OpenID []string `json:"openid"`
	} `json:"data"`
	NextOpenID string `json:"next_openid"`
}

// UserInfo is a follower profile.
type UserInfo struct {
	Subscribe  int    `json:"subscribe"`
	OpenID     string `json:"openid"`
	Nickname   string `json:"nickname"`
	Sex        int    `json:"sex"`
	Language   string `json:"language"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Country    string `json:"country"`
	HeadImgURL string `json:"headimgurl"`
	Remark     string `json:"remark"`
}

type userInfoResponse struct {
	baseResponse
	UserInfo
}

type batchGetResponse struct {
	baseResponse
	UserInfoList []UserInfo `json:"user_info_list"`
}

type uploadResponse struct {
	baseResponse
	Type      string `json:"type"`
	MediaID   string `json:"media_id"`
	CreatedAt int64  `json:"created_at"`
}

// MediaKind is the platform media category used for upload and send.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVoice MediaKind = "voice"
	MediaVideo MediaKind = "video"
)

// --- API methods ---

// SendText sends a customer-service text message to openID.
func (c *Client) SendText(ctx context.Context, openID, content string) error {
	return c.sendCustom(ctx, map[string]any{
		"touser":  openID,
		"msgtype": "text",
		"text":    map[string]string{"content": content},
	})
}

// SendMedia sends a previously uploaded media item to openID.
func (c *Client) SendMedia(ctx context.Context, openID string, kind MediaKind, mediaID string) error {
	return c.sendCustom(ctx, map[string]any{
		"touser":     openID,
		"msgtype":    string(kind),
		string(kind): map[string]string{"media_id": mediaID},
	})
}

func (c *Client) sendCustom(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal wechat send payload: %w", err)
	}
	_, err = callWithToken[baseResponse](ctx, c, "message/custom/send", func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.endpoint("/cgi-bin/message/custom/send", url.Values{"access_token": {token}}), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	return err
}

// UploadMedia uploads the local file at path as temporary media of kind and
// returns the platform media id.
func (c *Client) UploadMedia(ctx context.Context, kind MediaKind, path string) (string, error) {
	res, err := callWithToken[uploadResponse](ctx, c, "media/upload", func(token string) (*http.Request, error) {
		// The multipart body is rebuilt per attempt so a token retry re-reads the file.
		body, contentType, err := multipartFile(path)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.endpoint("/cgi-bin/media/upload", url.Values{"access_token": {token}, "type": {string(kind)}}), body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return "", err
	}
	if res.MediaID == "" {
		return "", errors.New("wechat media/upload returned empty media_id")
	}
	return res.MediaID, nil
}

// Followers returns every follower open id, following next_openid pagination.
func (c *Client) Followers(ctx context.Context) ([]string, error) {
	var (
		all  []string
		next string
	)
	for {
		res, err := callWithToken[followersResponse](ctx, c, "user/get", func(token string) (*http.Request, error) {
			q := url.Values{"access_token": {token}}
			if next != "" {
				q.Set("next_openid", next)
			}
			return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/cgi-bin/user/get", q), nil)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, res.Data.OpenID...)
		if res.Count == 0 || res.NextOpenID == "" || len(all) >= res.Total {
			return all, nil
		}
		next = res.NextOpenID
	}
}

// BatchGetUsers fetches profiles for openIDs in chunks of batchGetLimit.
func (c *Client) BatchGetUsers(ctx context.Context, openIDs []string) ([]UserInfo, error) {
	users := make([]UserInfo, 0, len(openIDs))
	for start := 0; start < len(openIDs); start += batchGetLimit {
		end := min(start+batchGetLimit, len(openIDs))

		list := make([]map[string]string, 0, end-start)
		for _, id := range openIDs[start:end] {
			list = append(list, map[string]string{"openid": id, "lang": "en"})
		}
		body, err := json.Marshal(map[string]any{"user_list": list})
		if err != nil {
			return nil, fmt.Errorf("marshal wechat batchget payload: %w", err)
		}

		res, err := callWithToken[batchGetResponse](ctx, c, "user/info/batchget", func(token string) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				c.endpoint("/cgi-bin/user/info/batchget", url.Values{"access_token": {token}}), bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		})
		if err != nil {
			return nil, err
		}
		users = append(users, res.UserInfoList...)
	}
	return users, nil
}

// User fetches a single follower profile.
func (c *Client) User(ctx context.Context, openID string) (UserInfo, error) {
	res, err := callWithToken[userInfoResponse](ctx, c, "user/info", func(token string) (*http.Request, error) {
		q := url.Values{"access_token": {token}, "openid": {openID}, "lang": {"en"}}
		return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/cgi-bin/user/info", q), nil)
	})
	if err != nil {
		return UserInfo{}, err
	}
	return res.UserInfo, nil
}

// MediaURL returns a download URL for an inbound media id.
func (c *Client) MediaURL(ctx context.Context, mediaID string) (string, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	return c.endpoint("/cgi-bin/media/get", url.Values{"access_token": {token}, "media_id": {mediaID}}), nil
}

// AccessToken returns a cached token, refreshing it shortly before expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	now := time.Now()
	c.tokenMu.Lock()
	if c.accessToken != "" && now.Before(c.accessTokenExp) {
		token := c.accessToken
		c.tokenMu.Unlock()
		return token, nil
	}
	c.tokenMu.Unlock()

	if c.cfg.AppID == "" || c.cfg.AppSecret == "" {
		return "", errors.New("wechat appID and appSecret are required")
	}

	q := url.Values{"grant_type": {"client_credential"}, "appid": {c.cfg.AppID}, "secret": {c.cfg.AppSecret}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/cgi-bin/token", q), nil)
	if err != nil {
		return "", fmt.Errorf("create wechat token request: %w", err)
	}

	var res tokenResponse
	if err := c.do(req, "token", &res); err != nil {
		return "", err
	}
	if err := res.err("token"); err != nil {
		return "", err
	}
	if strings.TrimSpace(res.AccessToken) == "" {
		return "", errors.New("wechat token returned empty access_token")
	}

	ttlSeconds := res.ExpiresIn
	if ttlSeconds <= 0 {
		ttlSeconds = 7200
	}
	expireAt := time.Now().Add(time.Duration(ttlSeconds-300) * time.Second)
	if ttlSeconds <= 300 {
		expireAt = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	}

	c.tokenMu.Lock()
	c.accessToken = res.AccessToken
	c.accessTokenExp = expireAt
	c.tokenMu.Unlock()

	return res.AccessToken, nil
}

func (c *Client) clearAccessToken() {
	c.tokenMu.Lock()
	c.accessToken = ""
	c.accessTokenExp = time.Time{}
	c.tokenMu.Unlock()
}

// apiResult is satisfied by every response type through its embedded baseResponse.
type apiResult[T any] interface {
	*T
	err(op string) error
}

// callWithToken performs a token-authenticated call and retries once with a
// fresh token when the platform reports the cached one as invalid or expired.
func callWithToken[T any, PT apiResult[T]](ctx context.Context, c *Client, op string, build func(token string) (*http.Request, error)) (*T, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		req, err := build(token)
		if err != nil {
			return nil, fmt.Errorf("create wechat %s request: %w", op, err)
		}

		res := new(T)
		if err := c.do(req, op, res); err != nil {
			return nil, err
		}
		err = PT(res).err(op)
		if err == nil {
			return res, nil
		}
		if attempt == 0 && (apierror.IsCode(err, codeInvalidToken) || apierror.IsCode(err, codeExpiredToken)) {
			c.clearAccessToken()
			continue
		}
		return nil, err
	}
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request wechat %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read wechat %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierror.FromResponse("wechat", op, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode wechat %s response: %w", op, err)
	}
	return nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	return c.cfg.BaseURL + path + "?" + q.Encode()
}

func multipartFile(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
