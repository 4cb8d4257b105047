/*
包 server 提供运维 HTTP 服务：Prometheus 指标与健康检查。

# 核心类型

  - Manager：封装 net/http.Server，生命周期 idle -> running -> stopped，
    stopped 为终态；非阻塞 Start、限时 Shutdown、异步错误通道 Errors。
  - FromServerConfig：由 config.ServerConfig 构建，metrics_port 为 0 时不启动。
  - NewHandler：只注册 GET /metrics 和 GET /health 两个路由，
    不承载任何业务 API。健康检查失败时返回 503。
*/
package server
